// Package udpiface 基于 UDP 的高级网络接口实现。
//
// 读协程收到数据报后依次经过：本地封禁表、按地址令牌桶限流、ping 应答、会话路由、
// 原始报文过滤规则；只有匹配过滤规则的数据报才会送入注册表分发。
package udpiface

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/taoyao-code/netfront/internal/metrics"
	"github.com/taoyao-code/netfront/internal/network"
	"github.com/taoyao-code/netfront/internal/session"
	"go.uber.org/zap"
)

// 未建立会话的探测报文
const (
	PingRequest byte = 0x01
	PongReply   byte = 0x1C
)

const defaultReadBuffer = 1500

var (
	ErrNotStarted     = errors.New("udpiface: interface not started")
	ErrAlreadyStarted = errors.New("udpiface: interface already started")
)

// Config UDP 接口配置
type Config struct {
	Label      string
	Addr       string
	ReadBuffer int
	RateLimit  int
	RateBurst  int
}

// SessionRouter 已建立会话的对端流量交给会话管理器
type SessionRouter interface {
	Touch(address string, port int, now time.Time) bool
	Close(address string, port int)
}

// Interface UDP 高级网络接口
type Interface struct {
	cfg      Config
	sink     network.RawPacketSink
	sessions SessionRouter
	limiter  *RateLimiter
	blocks   *blockTable
	logger   *zap.Logger
	metrics  *metrics.AppMetrics
	now      func() time.Time

	mu      sync.RWMutex
	conn    *net.UDPConn
	filters []*regexp.Regexp
	name    string
	lanName string

	wg    sync.WaitGroup
	stopC chan struct{}
}

// New 创建 UDP 接口，sink 通常为 *network.Registry
func New(cfg Config, sink network.RawPacketSink, logger *zap.Logger, m *metrics.AppMetrics) *Interface {
	if cfg.ReadBuffer <= 0 {
		cfg.ReadBuffer = defaultReadBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Label == "" {
		cfg.Label = cfg.Addr
	}
	return &Interface{
		cfg:     cfg,
		sink:    sink,
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		blocks:  newBlockTable(),
		logger:  logger.With(zap.String("iface", cfg.Label)),
		metrics: m,
		now:     time.Now,
	}
}

// SetSessionRouter 设置会话路由（可选）
func (i *Interface) SetSessionRouter(r SessionRouter) { i.sessions = r }

// Label 接口名称
func (i *Interface) Label() string { return i.cfg.Label }

// LocalAddr 实际监听地址，未启动时为 nil
func (i *Interface) LocalAddr() net.Addr {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.conn == nil {
		return nil
	}
	return i.conn.LocalAddr()
}

// Start 监听并启动读协程（非阻塞）
// 每次启动都清空本地封禁表与过滤规则，状态由注册表重新推送。
func (i *Interface) Start() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.conn != nil {
		return ErrAlreadyStarted
	}
	i.blocks.reset()
	i.filters = nil
	laddr, err := net.ResolveUDPAddr("udp", i.cfg.Addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", i.cfg.Addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}
	i.conn = conn
	i.stopC = make(chan struct{})

	i.wg.Add(1)
	go i.readLoop(conn, i.stopC)
	i.logger.Info("udp interface listening", zap.String("addr", conn.LocalAddr().String()))
	return nil
}

func (i *Interface) readLoop(conn *net.UDPConn, stopC chan struct{}) {
	defer i.wg.Done()
	buf := make([]byte, i.cfg.ReadBuffer)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-stopC:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			i.logger.Warn("udp read error", zap.Error(err))
			// 短暂错误等待后重试
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if n == 0 {
			continue
		}
		if i.metrics != nil {
			i.metrics.UDPBytesReceived.Add(float64(n))
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		i.handleDatagram(addr.IP.String(), addr.Port, payload)
	}
}

func (i *Interface) handleDatagram(address string, port int, payload []byte) {
	now := i.now()
	if i.blocks.blocked(address, now) {
		return
	}
	if !i.limiter.Allow(address, now) {
		if i.metrics != nil {
			i.metrics.UDPRateLimited.Inc()
		}
		return
	}

	if payload[0] == PingRequest {
		i.replyPong(address, port)
		return
	}

	if i.sessions != nil && i.sessions.Touch(address, port, now) {
		if payload[0] == session.CloseRequest {
			i.sessions.Close(address, port)
		}
		return
	}

	if !i.matchesFilter(payload) {
		i.logger.Debug("datagram matched no filter", zap.String("address", address), zap.Int("port", port))
		return
	}
	if i.sink != nil {
		i.sink.HandleRawPacket(i, address, port, payload)
	}
}

func (i *Interface) matchesFilter(payload []byte) bool {
	i.mu.RLock()
	filters := i.filters
	i.mu.RUnlock()
	if len(filters) == 0 {
		return false
	}
	text := network.PayloadText(payload)
	for _, f := range filters {
		if f.MatchString(text) {
			return true
		}
	}
	return false
}

func (i *Interface) replyPong(address string, port int) {
	i.mu.RLock()
	reply := make([]byte, 0, 2+len(i.name)+len(i.lanName))
	reply = append(reply, PongReply)
	reply = append(reply, i.name...)
	reply = append(reply, 0)
	reply = append(reply, i.lanName...)
	i.mu.RUnlock()
	if err := i.SendRawPacket(address, port, reply); err != nil {
		i.logger.Debug("send pong failed", zap.String("address", address), zap.Error(err))
	}
}

// SendRawPacket 发送原始数据报
func (i *Interface) SendRawPacket(address string, port int, payload []byte) error {
	i.mu.RLock()
	conn := i.conn
	i.mu.RUnlock()
	if conn == nil {
		return ErrNotStarted
	}
	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	n, err := conn.WriteToUDP(payload, raddr)
	if err != nil {
		return err
	}
	if i.metrics != nil {
		i.metrics.UDPBytesSent.Add(float64(n))
	}
	return nil
}

// BlockAddress timeoutSeconds <= 0 表示永久
func (i *Interface) BlockAddress(address string, timeoutSeconds int) {
	i.blocks.block(address, timeoutSeconds, i.now())
}

func (i *Interface) UnblockAddress(address string) {
	i.blocks.unblock(address)
}

// AddRawPacketFilter 追加过滤规则，相同表达式只保留一份
func (i *Interface) AddRawPacketFilter(pattern *regexp.Regexp) {
	if pattern == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, f := range i.filters {
		if f.String() == pattern.String() {
			return
		}
	}
	filters := make([]*regexp.Regexp, len(i.filters), len(i.filters)+1)
	copy(filters, i.filters)
	i.filters = append(filters, pattern)
}

// Filters 当前过滤规则
func (i *Interface) Filters() []*regexp.Regexp {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]*regexp.Regexp, len(i.filters))
	copy(out, i.filters)
	return out
}

// Tick 清理本地封禁表中的过期条目以及空闲地址的限流状态
func (i *Interface) Tick() {
	now := i.now()
	if n := i.blocks.purge(now); n > 0 {
		i.logger.Debug("purged expired blocks", zap.Int("count", n))
	}
	i.limiter.purge(now)
}

func (i *Interface) SetName(name string) {
	i.mu.Lock()
	i.name = name
	i.mu.Unlock()
}

func (i *Interface) SetLanName(name string) {
	i.mu.Lock()
	i.lanName = name
	i.mu.Unlock()
}

// SetNames 同时更新两个名称，pong 不会看到新旧混合的名称
func (i *Interface) SetNames(name, lanName string) {
	i.mu.Lock()
	i.name, i.lanName = name, lanName
	i.mu.Unlock()
}

// Names 当前名称
func (i *Interface) Names() (string, string) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.name, i.lanName
}

// Stats 限流统计
func (i *Interface) Stats() RateLimiterStats { return i.limiter.Stats() }

// Shutdown 关闭监听并等待读协程退出，可重复调用
func (i *Interface) Shutdown() error {
	i.mu.Lock()
	conn := i.conn
	i.conn = nil
	if conn != nil {
		close(i.stopC)
	}
	i.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	i.wg.Wait()
	i.logger.Info("udp interface stopped")
	return err
}

var (
	_ network.AdvancedNetworkInterface = (*Interface)(nil)
	_ network.CombinedNameSetter       = (*Interface)(nil)
)
