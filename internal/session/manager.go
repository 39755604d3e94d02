package session

import (
	"sync"
	"time"
)

// Manager 会话管理内存实现：记录每个对端最近活跃时间，空闲超时后在 Tick 中移除
type Manager struct {
	mu       sync.RWMutex
	lastSeen map[string]time.Time // host:port -> last seen
	timeout  time.Duration
}

func New(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Manager{lastSeen: make(map[string]time.Time), timeout: timeout}
}

// Open 建立会话，重复建立将刷新活跃时间
func (m *Manager) Open(address string, port int, now time.Time) bool {
	key := Key(address, port)
	m.mu.Lock()
	_, exists := m.lastSeen[key]
	m.lastSeen[key] = now
	m.mu.Unlock()
	return !exists
}

// Touch 刷新会话活跃时间
func (m *Manager) Touch(address string, port int, now time.Time) bool {
	key := Key(address, port)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lastSeen[key]; !ok {
		return false
	}
	m.lastSeen[key] = now
	return true
}

// Close 关闭会话
func (m *Manager) Close(address string, port int) {
	m.mu.Lock()
	delete(m.lastSeen, Key(address, port))
	m.mu.Unlock()
}

// Has 会话是否存在
func (m *Manager) Has(address string, port int) bool {
	m.mu.RLock()
	_, ok := m.lastSeen[Key(address, port)]
	m.mu.RUnlock()
	return ok
}

// Tick 清理空闲超时的会话
func (m *Manager) Tick(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, ts := range m.lastSeen {
		if now.Sub(ts) > m.timeout {
			delete(m.lastSeen, key)
		}
	}
}

// Count 返回当前会话数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lastSeen)
}
