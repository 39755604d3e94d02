package health

import "sync/atomic"

// Readiness 启动阶段的就绪标记：接口全部启动、可选依赖（Redis）连接完成
type Readiness struct {
	networkReady atomic.Bool
	redisReady   atomic.Bool
	redisNeeded  atomic.Bool
}

func NewReadiness() *Readiness { return &Readiness{} }

func (r *Readiness) SetNetworkReady(v bool) { r.networkReady.Store(v) }

// RequireRedis 启用 Redis 时调用，之后 Ready 需要等待 SetRedisReady
func (r *Readiness) RequireRedis()        { r.redisNeeded.Store(true) }
func (r *Readiness) SetRedisReady(v bool) { r.redisReady.Store(v) }

// Ready 总体就绪
func (r *Readiness) Ready() bool {
	if r.redisNeeded.Load() && !r.redisReady.Load() {
		return false
	}
	return r.networkReady.Load()
}
