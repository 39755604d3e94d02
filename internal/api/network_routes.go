package api

import (
	"github.com/gin-gonic/gin"
	"github.com/taoyao-code/netfront/internal/api/middleware"
	"go.uber.org/zap"
)

// RegisterNetworkRoutes 注册网络管理路由
// 写操作受 API Key 保护，读操作公开。
func RegisterNetworkRoutes(r gin.IRouter, h *NetworkHandler, authCfg middleware.AuthConfig, logger *zap.Logger) {
	g := r.Group("/api/network")
	{
		g.GET("", h.GetStatus)     // 注册表快照
		g.GET("/bans", h.ListBans) // 当前封禁
	}

	admin := r.Group("/api/network", middleware.APIKeyAuth(authCfg, logger))
	{
		admin.POST("/bans", h.BlockAddress)              // 封禁地址
		admin.DELETE("/bans/:address", h.UnblockAddress) // 解除封禁
		admin.PUT("/names", h.UpdateNames)               // 更新名称
	}
}
