package udpiface

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// 空闲超过该时长的地址令牌桶在 Tick 中回收
const limiterIdleTTL = time.Minute

type addressBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按来源地址独立计数的Token Bucket入站限流器
type RateLimiter struct {
	ratePerSec int
	burst      int

	mu      sync.Mutex
	buckets map[string]*addressBucket

	allowedCount  atomic.Int64
	rejectedCount atomic.Int64
}

// NewRateLimiter 创建速率限流器
// ratePerSec: 每个地址每秒允许的数据报数，<=0 表示不限流
// burst: 突发容量（桶的大小）
func NewRateLimiter(ratePerSec int, burst int) *RateLimiter {
	if ratePerSec > 0 && burst <= 0 {
		burst = ratePerSec * 2 // 默认突发为稳定速率的2倍
	}
	if ratePerSec <= 0 {
		burst = 0
	}
	return &RateLimiter{
		ratePerSec: ratePerSec,
		burst:      burst,
		buckets:    make(map[string]*addressBucket),
	}
}

// Allow 检查该地址是否允许（非阻塞）
func (l *RateLimiter) Allow(address string, now time.Time) bool {
	if l.ratePerSec <= 0 {
		l.allowedCount.Add(1)
		return true
	}

	l.mu.Lock()
	b, ok := l.buckets[address]
	if !ok {
		b = &addressBucket{limiter: rate.NewLimiter(rate.Limit(l.ratePerSec), l.burst)}
		l.buckets[address] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)
	l.mu.Unlock()

	if allowed {
		l.allowedCount.Add(1)
	} else {
		l.rejectedCount.Add(1)
	}
	return allowed
}

// purge 回收空闲地址的令牌桶，返回回收数量
func (l *RateLimiter) purge(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for addr, b := range l.buckets {
		if now.Sub(b.lastSeen) >= limiterIdleTTL {
			delete(l.buckets, addr)
			removed++
		}
	}
	return removed
}

// Stats 获取统计信息
func (l *RateLimiter) Stats() RateLimiterStats {
	l.mu.Lock()
	tracked := len(l.buckets)
	l.mu.Unlock()
	return RateLimiterStats{
		RatePerSecond:    l.ratePerSec,
		Burst:            l.burst,
		TrackedAddresses: tracked,
		AllowedTotal:     l.allowedCount.Load(),
		RejectedTotal:    l.rejectedCount.Load(),
	}
}

// RateLimiterStats 速率限流器统计信息
type RateLimiterStats struct {
	RatePerSecond    int   `json:"rate_per_second"`
	Burst            int   `json:"burst"`
	TrackedAddresses int   `json:"tracked_addresses"`
	AllowedTotal     int64 `json:"allowed_total"`
	RejectedTotal    int64 `json:"rejected_total"`
}
