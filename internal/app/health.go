package app

import (
	"github.com/gin-gonic/gin"
	"github.com/taoyao-code/netfront/internal/health"
	"github.com/taoyao-code/netfront/internal/network"
)

// NewHealthAggregator 创建健康检查聚合器，初始只包含网络检查器
func NewHealthAggregator(registry *network.Registry) *health.Aggregator {
	return health.NewAggregator(health.NewNetworkChecker(registry))
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}
