package app

import (
	"fmt"

	cfgpkg "github.com/taoyao-code/netfront/internal/config"
	"github.com/taoyao-code/netfront/internal/metrics"
	"github.com/taoyao-code/netfront/internal/network"
	"github.com/taoyao-code/netfront/internal/query"
	"github.com/taoyao-code/netfront/internal/session"
	"github.com/taoyao-code/netfront/internal/udpiface"
	"go.uber.org/zap"
)

// NewRegistry 构造注册表并挂接会话管理器
func NewRegistry(cfg cfgpkg.NetworkConfig, sessions network.SessionManager, logger *zap.Logger, appm *metrics.AppMetrics) *network.Registry {
	reg := network.New(network.Config{
		Name:           cfg.Name,
		LanName:        cfg.LanName,
		DefaultLanName: cfg.DefaultLanName,
	}, logger.Named("network"), appm)
	if sessions != nil {
		reg.SetSessionManager(sessions)
	}
	reg.SetHooks(network.Hooks{
		Removed: func(iface network.NetworkInterface) {
			logger.Info("network interface removed", zap.String("type", fmt.Sprintf("%T", iface)))
		},
	})
	return reg
}

// LoadStaticBans 加载静态封禁文件，path 为空时跳过
func LoadStaticBans(path string, reg *network.Registry, logger *zap.Logger) error {
	if path == "" {
		return nil
	}
	file, err := network.LoadBanFile(path)
	if err != nil {
		return err
	}
	n := file.Apply(reg)
	logger.Info("static bans applied", zap.String("path", path), zap.Int("count", n))
	return nil
}

// RegisterRawHandlers 注册内置原始报文处理器：会话握手与状态查询
func RegisterRawHandlers(reg *network.Registry, sessions session.SessionManager, q cfgpkg.QueryConfig, logger *zap.Logger) {
	reg.RegisterRawPacketHandler(session.NewOpenHandler(sessions, logger.Named("session")))
	if q.Enabled {
		reg.RegisterRawPacketHandler(query.NewHandler(reg, q.Secret, logger.Named("query")))
	}
}

// StartInterfaces 创建并注册配置中的 UDP 接口
// 任一接口注册失败时注销已注册的接口并返回错误。
func StartInterfaces(
	cfgs []cfgpkg.InterfaceConfig,
	reg *network.Registry,
	sessions udpiface.SessionRouter,
	logger *zap.Logger,
	appm *metrics.AppMetrics,
) ([]*udpiface.Interface, error) {
	started := make([]*udpiface.Interface, 0, len(cfgs))
	for _, ic := range cfgs {
		iface := udpiface.New(udpiface.Config{
			Label:      ic.Name,
			Addr:       ic.Addr,
			ReadBuffer: ic.ReadBuffer,
			RateLimit:  ic.RateLimit,
			RateBurst:  ic.RateBurst,
		}, reg, logger.Named("udp"), appm)
		if sessions != nil {
			iface.SetSessionRouter(sessions)
		}
		if _, err := reg.RegisterInterface(iface); err != nil {
			for _, prev := range started {
				_ = reg.UnregisterInterface(prev)
			}
			return nil, fmt.Errorf("register interface %s (%s): %w", ic.Name, ic.Addr, err)
		}
		started = append(started, iface)
	}
	return started, nil
}
