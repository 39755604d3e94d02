package api

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taoyao-code/netfront/internal/network"
	"go.uber.org/zap"
)

// Executor 把变更提交给注册表的拥有者协程执行
type Executor interface {
	Do(ctx context.Context, fn func(r *network.Registry)) error
}

// StatusSource 只读快照来源
type StatusSource interface {
	Snapshot() network.Status
	BannedAddresses() []network.BanEntry
}

// NetworkHandler 网络注册表管理API处理器
// 读操作直接读取快照，写操作经 Executor 串行化。
type NetworkHandler struct {
	status StatusSource
	exec   Executor
	logger *zap.Logger
}

// NewNetworkHandler 创建网络管理Handler
func NewNetworkHandler(status StatusSource, exec Executor, logger *zap.Logger) *NetworkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetworkHandler{status: status, exec: exec, logger: logger}
}

// BlockRequest 封禁请求，timeoutSeconds <= 0 表示永久
type BlockRequest struct {
	Address        string `json:"address" binding:"required"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// NamesRequest 名称更新请求
type NamesRequest struct {
	Name    string `json:"name" binding:"required"`
	LanName string `json:"lanName"`
}

// GetStatus 查询注册表快照
func (h *NetworkHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Snapshot())
}

// ListBans 查询当前生效的封禁
func (h *NetworkHandler) ListBans(c *gin.Context) {
	bans := h.status.BannedAddresses()
	c.JSON(http.StatusOK, gin.H{
		"count": len(bans),
		"bans":  bans,
	})
}

// BlockAddress 封禁地址并下发到所有高级接口
func (h *NetworkHandler) BlockAddress(c *gin.Context) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
		return
	}
	if net.ParseIP(req.Address) == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	err := h.exec.Do(c.Request.Context(), func(r *network.Registry) {
		r.BlockAddress(req.Address, req.TimeoutSeconds)
	})
	if err != nil {
		h.fail(c, "block address failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":        req.Address,
		"timeoutSeconds": req.TimeoutSeconds,
		"permanent":      req.TimeoutSeconds <= 0,
	})
}

// UnblockAddress 解除封禁
func (h *NetworkHandler) UnblockAddress(c *gin.Context) {
	address := c.Param("address")
	if net.ParseIP(address) == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	err := h.exec.Do(c.Request.Context(), func(r *network.Registry) {
		r.UnblockAddress(address)
	})
	if err != nil {
		h.fail(c, "unblock address failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"address": address, "message": "address unblocked"})
}

// UpdateNames 同时更新名称与局域网名称
func (h *NetworkHandler) UpdateNames(c *gin.Context) {
	var req NamesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
		return
	}

	var name, lanName string
	err := h.exec.Do(c.Request.Context(), func(r *network.Registry) {
		r.SetNames(req.Name, req.LanName)
		name, lanName = r.Name(), r.LanName()
	})
	if err != nil {
		h.fail(c, "update names failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"name": name, "lanName": lanName})
}

func (h *NetworkHandler) fail(c *gin.Context, msg string, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		code = http.StatusServiceUnavailable
	}
	h.logger.Error(msg, zap.Error(err))
	c.JSON(code, gin.H{"error": msg, "detail": err.Error()})
}
