package network

import (
	"regexp"
	"sync"
)

// RawPacketHandler 原始报文处理器，按正则匹配载荷（见 PayloadText）
// Handle 返回 true 表示已处理；返回匹配 ErrBadPacket 的错误表示坏包。
// 实现必须可比较（通常为指针），同一处理器只能注册一次。
type RawPacketHandler interface {
	Pattern() *regexp.Regexp
	Handle(source AdvancedNetworkInterface, address string, port int, payload []byte) (bool, error)
}

// HandleFunc 处理函数签名
type HandleFunc func(source AdvancedNetworkInterface, address string, port int, payload []byte) (bool, error)

type funcHandler struct {
	pattern *regexp.Regexp
	fn      HandleFunc
}

func (h *funcHandler) Pattern() *regexp.Regexp { return h.pattern }

func (h *funcHandler) Handle(source AdvancedNetworkInterface, address string, port int, payload []byte) (bool, error) {
	return h.fn(source, address, port, payload)
}

// HandlerFunc 把函数包装为 RawPacketHandler，每次调用返回新的身份
func HandlerFunc(pattern *regexp.Regexp, fn HandleFunc) RawPacketHandler {
	return &funcHandler{pattern: pattern, fn: fn}
}

// HandlerTable 原始报文处理器表，按注册顺序保存
type HandlerTable struct {
	mu       sync.RWMutex
	handlers []RawPacketHandler
}

// NewHandlerTable 创建空处理器表
func NewHandlerTable() *HandlerTable { return &HandlerTable{} }

// Register 按身份幂等插入，返回处理器的匹配规则以及是否为新增
// 匹配规则为 nil 的处理器不会被接受。
func (t *HandlerTable) Register(h RawPacketHandler) (*regexp.Regexp, bool) {
	if h == nil || h.Pattern() == nil {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.handlers {
		if existing == h {
			return h.Pattern(), false
		}
	}
	t.handlers = append(t.handlers, h)
	return h.Pattern(), true
}

// Unregister 按身份移除，不存在时返回 false
func (t *HandlerTable) Unregister(h RawPacketHandler) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, existing := range t.handlers {
		if existing == h {
			t.handlers = append(t.handlers[:i:i], t.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Patterns 返回所有已注册处理器的匹配规则
func (t *HandlerTable) Patterns() []*regexp.Regexp {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*regexp.Regexp, 0, len(t.handlers))
	for _, h := range t.handlers {
		out = append(out, h.Pattern())
	}
	return out
}

// Snapshot 按注册顺序返回处理器副本，分发时无需持锁调用处理器
func (t *HandlerTable) Snapshot() []RawPacketHandler {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]RawPacketHandler, len(t.handlers))
	copy(out, t.handlers)
	return out
}

// Len 处理器数量
func (t *HandlerTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handlers)
}
