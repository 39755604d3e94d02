package app

import (
	cfgpkg "github.com/taoyao-code/netfront/internal/config"
	"github.com/taoyao-code/netfront/internal/session"
	redisstorage "github.com/taoyao-code/netfront/internal/storage/redis"
	"go.uber.org/zap"
)

// NewSessionManager 构造会话管理器
// 如果Redis客户端可用，则使用Redis会话管理器，否则使用内存会话管理器
func NewSessionManager(
	cfg cfgpkg.SessionConfig,
	redisClient *redisstorage.Client,
	serverID string,
	logger *zap.Logger,
) session.SessionManager {
	timeout := cfg.IdleTimeout()

	if redisClient != nil && redisClient.Client != nil {
		mgr := session.NewRedisManager(redisClient.Client, serverID, timeout, logger.Named("session"))
		if cfg.SyncInterval > 0 {
			mgr.SetSyncInterval(cfg.SyncInterval)
		}
		logger.Info("using redis session manager",
			zap.String("server_id", serverID),
			zap.Duration("timeout", timeout))
		return mgr
	}

	logger.Info("using memory session manager", zap.Duration("timeout", timeout))
	return session.New(timeout)
}
