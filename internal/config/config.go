package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	ServerID string `mapstructure:"serverId"`
}

// HTTPConfig HTTP 管理服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	Auth         AuthConfig    `mapstructure:"auth"`
}

// AuthConfig 管理接口 API Key 认证
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	APIKeys []string `mapstructure:"apiKeys"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// NetworkConfig 注册表与拥有者循环配置
type NetworkConfig struct {
	Name            string        `mapstructure:"name"`
	LanName         string        `mapstructure:"lanName"`
	DefaultLanName  string        `mapstructure:"defaultLanName"`
	TickInterval    time.Duration `mapstructure:"tickInterval"`
	CompactInterval time.Duration `mapstructure:"compactInterval"`
	BanFile         string        `mapstructure:"banFile"`
}

// InterfaceConfig 单个 UDP 接口配置
type InterfaceConfig struct {
	Name       string `mapstructure:"name"`
	Addr       string `mapstructure:"addr"`
	ReadBuffer int    `mapstructure:"readBuffer"`
	RateLimit  int    `mapstructure:"rateLimit"`
	RateBurst  int    `mapstructure:"rateBurst"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	IdleTimeoutSec int           `mapstructure:"idleTimeoutSec"`
	SyncInterval   time.Duration `mapstructure:"syncInterval"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"poolSize"`
	MinIdleConns int           `mapstructure:"minIdleConns"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// QueryConfig 状态查询处理器配置
type QueryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Secret  string `mapstructure:"secret"`
}

// Config 顶层配置结构
type Config struct {
	App        AppConfig         `mapstructure:"app"`
	HTTP       HTTPConfig        `mapstructure:"http"`
	Logging    LoggingConfig     `mapstructure:"logging"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Network    NetworkConfig     `mapstructure:"network"`
	Interfaces []InterfaceConfig `mapstructure:"interfaces"`
	Session    SessionConfig     `mapstructure:"session"`
	Redis      RedisConfig       `mapstructure:"redis"`
	Query      QueryConfig       `mapstructure:"query"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 NETFRONT_CONFIG 读取；否则回退到 configs/netfront.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	// 环境变量覆盖：前缀 NETFRONT_，并将点号替换为下划线
	v.SetEnvPrefix("NETFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("config")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("netfront")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 首次运行允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验必须的配置项
func (c *Config) Validate() error {
	if c.Network.TickInterval <= 0 {
		return fmt.Errorf("network.tickInterval must be positive, got %s", c.Network.TickInterval)
	}
	seen := make(map[string]bool, len(c.Interfaces))
	for i, ic := range c.Interfaces {
		if ic.Addr == "" {
			return fmt.Errorf("interfaces[%d]: addr is required", i)
		}
		if seen[ic.Addr] {
			return fmt.Errorf("interfaces[%d]: duplicate addr %s", i, ic.Addr)
		}
		seen[ic.Addr] = true
	}
	if c.HTTP.Auth.Enabled && len(c.HTTP.Auth.APIKeys) == 0 {
		return errors.New("http.auth.enabled requires at least one api key")
	}
	return nil
}

// IdleTimeout 会话空闲超时
func (c SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "netfront")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.auth.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/netfront.log")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("network.name", "netfront")
	v.SetDefault("network.lanName", "")
	v.SetDefault("network.defaultLanName", "netfront")
	v.SetDefault("network.tickInterval", "50ms")
	v.SetDefault("network.compactInterval", "1m")
	v.SetDefault("network.banFile", "")

	v.SetDefault("interfaces", []map[string]interface{}{
		{"name": "udp4", "addr": ":19132", "readBuffer": 1500, "rateLimit": 0, "rateBurst": 0},
	})

	v.SetDefault("session.idleTimeoutSec", 300)
	v.SetDefault("session.syncInterval", "5s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 20)
	v.SetDefault("redis.minIdleConns", 2)
	v.SetDefault("redis.dialTimeout", "5s")
	v.SetDefault("redis.readTimeout", "3s")
	v.SetDefault("redis.writeTimeout", "3s")

	v.SetDefault("query.enabled", true)
	v.SetDefault("query.secret", "")
}
