package session

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/taoyao-code/netfront/internal/network"
	"go.uber.org/zap"
)

// RedisManager Redis版本的会话管理器，支持多实例共享会话视图
// 报文路径只读写本地缓存，Redis 在 Tick 中按 syncInterval 批量同步。
type RedisManager struct {
	client       *redis.Client
	serverID     string        // 当前服务器实例ID
	timeout      time.Duration // 空闲超时时间
	syncInterval time.Duration
	opTimeout    time.Duration // 单次Redis往返上限
	logger       *zap.Logger

	mu       sync.RWMutex
	local    map[string]*Record // host:port -> 会话
	lastSync time.Time
	total    int // 最近一次同步得到的全局会话数
}

// Record Redis存储的会话数据结构
type Record struct {
	Address  string    `json:"address"`
	Port     int       `json:"port"`
	ServerID string    `json:"server_id"`
	OpenedAt time.Time `json:"opened_at"`
	LastSeen time.Time `json:"last_seen"`
}

const defaultOpTimeout = 500 * time.Millisecond

// Redis Key设计
const (
	// session:peer:{host:port} -> Record JSON
	keyPeerPrefix = "session:peer:"

	// session:active -> ZSet[host:port]，score 为最近活跃毫秒时间戳
	keyActive = "session:active"
)

// NewRedisManager 创建Redis会话管理器
func NewRedisManager(client *redis.Client, serverID string, timeout time.Duration, logger *zap.Logger) *RedisManager {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if serverID == "" {
		serverID = uuid.New().String()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisManager{
		client:       client,
		serverID:     serverID,
		timeout:      timeout,
		syncInterval: 5 * time.Second,
		opTimeout:    defaultOpTimeout,
		logger:       logger,
		local:        make(map[string]*Record),
	}
}

// SetSyncInterval 设置同步间隔，<=0 表示每次 Tick 都同步
func (m *RedisManager) SetSyncInterval(d time.Duration) {
	m.mu.Lock()
	m.syncInterval = d
	m.mu.Unlock()
}

// SetOpTimeout 设置单次Redis操作超时，<=0 时使用默认值
func (m *RedisManager) SetOpTimeout(d time.Duration) {
	if d <= 0 {
		d = defaultOpTimeout
	}
	m.mu.Lock()
	m.opTimeout = d
	m.mu.Unlock()
}

func (m *RedisManager) opContext() (context.Context, context.CancelFunc) {
	m.mu.RLock()
	d := m.opTimeout
	m.mu.RUnlock()
	return context.WithTimeout(context.Background(), d)
}

// ServerID 当前实例ID，出现在管理接口的状态快照中
func (m *RedisManager) ServerID() string { return m.serverID }

// Open 建立会话并立即写入Redis
func (m *RedisManager) Open(address string, port int, now time.Time) bool {
	key := Key(address, port)
	m.mu.Lock()
	data, exists := m.local[key]
	if exists {
		data.LastSeen = now
	} else {
		data = &Record{Address: address, Port: port, ServerID: m.serverID, OpenedAt: now, LastSeen: now}
		m.local[key] = data
	}
	snapshot := *data
	m.mu.Unlock()

	if !exists {
		ctx, cancel := m.opContext()
		defer cancel()
		pipe := m.client.TxPipeline()
		m.writeSession(ctx, pipe, key, &snapshot)
		if _, err := pipe.Exec(ctx); err != nil {
			m.logger.Warn("redis session open failed", zap.String("session", key), zap.Error(err))
		}
	}
	return !exists
}

// Touch 仅刷新本地缓存，下一次同步时写回Redis
func (m *RedisManager) Touch(address string, port int, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.local[Key(address, port)]
	if !ok {
		return false
	}
	data.LastSeen = now
	return true
}

// Close 关闭会话
func (m *RedisManager) Close(address string, port int) {
	key := Key(address, port)
	m.mu.Lock()
	_, ok := m.local[key]
	delete(m.local, key)
	m.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := m.opContext()
	defer cancel()
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, keyPeerPrefix+key)
	pipe.ZRem(ctx, keyActive, key)
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("redis session close failed", zap.String("session", key), zap.Error(err))
	}
}

// Has 会话是否存在于本实例
func (m *RedisManager) Has(address string, port int) bool {
	m.mu.RLock()
	_, ok := m.local[Key(address, port)]
	m.mu.RUnlock()
	return ok
}

// Tick 清理本地超时会话，并按同步间隔刷新Redis
func (m *RedisManager) Tick(now time.Time) {
	m.mu.Lock()
	var expired []string
	for key, data := range m.local {
		if now.Sub(data.LastSeen) > m.timeout {
			expired = append(expired, key)
			delete(m.local, key)
		}
	}
	due := m.syncInterval <= 0 || now.Sub(m.lastSync) >= m.syncInterval
	var live []Record
	var liveKeys []string
	if due {
		m.lastSync = now
		for key, data := range m.local {
			live = append(live, *data)
			liveKeys = append(liveKeys, key)
		}
	}
	m.mu.Unlock()

	if len(expired) == 0 && !due {
		return
	}

	ctx, cancel := m.opContext()
	defer cancel()
	pipe := m.client.Pipeline()
	for _, key := range expired {
		pipe.Del(ctx, keyPeerPrefix+key)
		pipe.ZRem(ctx, keyActive, key)
	}
	var card *redis.IntCmd
	if due {
		for i := range live {
			m.writeSession(ctx, pipe, liveKeys[i], &live[i])
		}
		// 其它实例遗留的过期会话一并清理
		cutoff := now.Add(-m.timeout).UnixMilli()
		pipe.ZRemRangeByScore(ctx, keyActive, "-inf", "("+strconv.FormatInt(cutoff, 10))
		card = pipe.ZCard(ctx, keyActive)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("redis session sync failed", zap.Int("expired", len(expired)), zap.Error(err))
		return
	}
	if card != nil {
		m.mu.Lock()
		m.total = int(card.Val())
		m.mu.Unlock()
	}
}

// Count 返回全局会话数（最近一次同步结果），未同步前返回本地数量
func (m *RedisManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.total > len(m.local) {
		return m.total
	}
	return len(m.local)
}

// LocalCount 本实例会话数，出现在管理接口的状态快照中
func (m *RedisManager) LocalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.local)
}

// lookup 从Redis读取会话数据（可能属于其它实例）
func (m *RedisManager) lookup(ctx context.Context, address string, port int) (*Record, error) {
	val, err := m.client.Get(ctx, keyPeerPrefix+Key(address, port)).Result()
	if err != nil {
		return nil, err
	}
	var data Record
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (m *RedisManager) writeSession(ctx context.Context, pipe redis.Pipeliner, key string, data *Record) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		m.logger.Error("marshal session failed", zap.String("session", key), zap.Error(err))
		return
	}
	pipe.Set(ctx, keyPeerPrefix+key, jsonData, m.timeout*2)
	pipe.ZAdd(ctx, keyActive, redis.Z{Score: float64(data.LastSeen.UnixMilli()), Member: key})
}

// Cleanup 清理本实例的所有会话（用于服务关闭时）
func (m *RedisManager) Cleanup() error {
	m.mu.Lock()
	keys := make([]string, 0, len(m.local))
	for key := range m.local {
		keys = append(keys, key)
	}
	m.local = make(map[string]*Record)
	m.mu.Unlock()

	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := m.opContext()
	defer cancel()
	pipe := m.client.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, keyPeerPrefix+key)
	}
	members := make([]interface{}, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	pipe.ZRem(ctx, keyActive, members...)
	_, err := pipe.Exec(ctx)
	return err
}

var _ network.SessionInstance = (*RedisManager)(nil)
