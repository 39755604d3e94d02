package network

import (
	"math"
	"sync"
	"time"
)

// PermanentBan 永久封禁的过期时间哨兵，保证比较全序
var PermanentBan = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// BanEntry 封禁条目
type BanEntry struct {
	Address   string    `json:"address"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Permanent 是否为永久封禁
func (e BanEntry) Permanent() bool { return e.ExpiresAt.Equal(PermanentBan) }

// RemainingSeconds 剩余封禁秒数（向上取整），永久封禁返回 -1
func (e BanEntry) RemainingSeconds(now time.Time) int {
	if e.Permanent() {
		return -1
	}
	return int(math.Ceil(e.ExpiresAt.Sub(now).Seconds()))
}

// BanList 地址 -> 过期时间表，惰性过期：存在但 expiresAt <= now 的条目视为未封禁
type BanList struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewBanList 创建空封禁表
func NewBanList() *BanList {
	return &BanList{entries: make(map[string]time.Time)}
}

// Block 封禁地址，覆盖已有条目；timeoutSeconds <= 0 为永久封禁
func (b *BanList) Block(address string, timeoutSeconds int, now time.Time) BanEntry {
	expires := PermanentBan
	if timeoutSeconds > 0 {
		expires = now.Add(time.Duration(timeoutSeconds) * time.Second)
	}
	b.mu.Lock()
	b.entries[address] = expires
	b.mu.Unlock()
	return BanEntry{Address: address, ExpiresAt: expires}
}

// Unblock 解除封禁，不存在时无操作
func (b *BanList) Unblock(address string) {
	b.mu.Lock()
	delete(b.entries, address)
	b.mu.Unlock()
}

// IsBanned 条目存在且 now < expiresAt 时返回 true，不清理过期条目
func (b *BanList) IsBanned(address string, now time.Time) bool {
	b.mu.RLock()
	expires, ok := b.entries[address]
	b.mu.RUnlock()
	return ok && now.Before(expires)
}

// Entries 返回当前未过期的条目
func (b *BanList) Entries(now time.Time) []BanEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]BanEntry, 0, len(b.entries))
	for addr, expires := range b.entries {
		if now.Before(expires) {
			out = append(out, BanEntry{Address: addr, ExpiresAt: expires})
		}
	}
	return out
}

// Compact 显式清理已过期条目，返回清理数量
func (b *BanList) Compact(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for addr, expires := range b.entries {
		if !now.Before(expires) {
			delete(b.entries, addr)
			removed++
		}
	}
	return removed
}

// Len 条目总数（含尚未清理的过期条目）
func (b *BanList) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
