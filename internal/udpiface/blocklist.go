package udpiface

import (
	"sync"
	"time"
)

// blockTable 接口本地的封禁表，由注册表推送，读循环据此丢弃数据报
type blockTable struct {
	mu      sync.RWMutex
	entries map[string]time.Time // address -> 到期时间，零值表示永久
}

func newBlockTable() *blockTable {
	return &blockTable{entries: make(map[string]time.Time)}
}

func (b *blockTable) block(address string, timeoutSeconds int, now time.Time) {
	var until time.Time
	if timeoutSeconds > 0 {
		until = now.Add(time.Duration(timeoutSeconds) * time.Second)
	}
	b.mu.Lock()
	b.entries[address] = until
	b.mu.Unlock()
}

func (b *blockTable) unblock(address string) {
	b.mu.Lock()
	delete(b.entries, address)
	b.mu.Unlock()
}

func (b *blockTable) blocked(address string, now time.Time) bool {
	b.mu.RLock()
	until, ok := b.entries[address]
	b.mu.RUnlock()
	return ok && (until.IsZero() || now.Before(until))
}

// reset 清空所有条目
func (b *blockTable) reset() {
	b.mu.Lock()
	b.entries = make(map[string]time.Time)
	b.mu.Unlock()
}

// purge 清理过期条目，返回清理数量
func (b *blockTable) purge(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for addr, until := range b.entries {
		if !until.IsZero() && !now.Before(until) {
			delete(b.entries, addr)
			removed++
		}
	}
	return removed
}

func (b *blockTable) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
