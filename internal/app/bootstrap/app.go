package bootstrap

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taoyao-code/netfront/internal/api"
	"github.com/taoyao-code/netfront/internal/api/middleware"
	"github.com/taoyao-code/netfront/internal/app"
	cfgpkg "github.com/taoyao-code/netfront/internal/config"
	"github.com/taoyao-code/netfront/internal/health"
	"github.com/taoyao-code/netfront/internal/httpserver"
	"github.com/taoyao-code/netfront/internal/network"
	"github.com/taoyao-code/netfront/internal/session"
	"github.com/taoyao-code/netfront/internal/udpiface"
	"go.uber.org/zap"
)

// Run 统一启动流程：依赖就绪后再启动 UDP 接口，收到信号后按相反顺序关闭
func Run(cfg *cfgpkg.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, cfg, log)
}

// RunContext 与 Run 相同，但由调用方控制退出
func RunContext(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger) error {
	serverID := app.GenerateServerID(cfg.App.ServerID)
	log.Info("starting netfront", zap.String("server_id", serverID), zap.String("env", cfg.App.Env))

	// ========== 阶段1: 基础组件 ==========
	_, appm, metricsHandler := app.NewMetrics(cfg.Metrics)
	ready := health.NewReadiness()

	// ========== 阶段2: Redis（可选）==========
	if cfg.Redis.Enabled {
		ready.RequireRedis()
	}
	redisClient, err := app.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Error("redis initialization failed", zap.Error(err))
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		ready.SetRedisReady(true)
	}

	// ========== 阶段3: 会话与注册表 ==========
	sessions := app.NewSessionManager(cfg.Session, redisClient, serverID, log)
	if rm, ok := sessions.(*session.RedisManager); ok {
		defer func() {
			if err := rm.Cleanup(); err != nil {
				log.Warn("redis session cleanup failed", zap.Error(err))
			}
		}()
	}

	registry := app.NewRegistry(cfg.Network, sessions, log, appm)
	if err := app.LoadStaticBans(cfg.Network.BanFile, registry, log); err != nil {
		log.Error("load ban file failed", zap.Error(err))
		return err
	}
	app.RegisterRawHandlers(registry, sessions, cfg.Query, log)

	loop := app.NewLoop(registry, cfg.Network.TickInterval, cfg.Network.CompactInterval, log.Named("loop"))
	loopCtx, cancelLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(loopCtx)
	}()

	// ========== 阶段4: HTTP 管理服务（非阻塞）==========
	healthAgg := app.NewHealthAggregator(registry)
	app.AddRedisChecker(healthAgg, redisClient)

	httpSrv := httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, ready.Ready)
	authCfg := middleware.AuthConfig{Enabled: cfg.HTTP.Auth.Enabled, APIKeys: cfg.HTTP.Auth.APIKeys}
	httpSrv.Register(func(r *gin.Engine) {
		api.RegisterNetworkRoutes(r, api.NewNetworkHandler(registry, loop, log.Named("api")), authCfg, log)
		app.RegisterHealthRoutes(r, healthAgg)
	})
	go func() {
		if err := httpSrv.Start(); err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}()
	log.Info("http server started", zap.String("addr", cfg.HTTP.Addr))

	// ========== 阶段5: 最后启动 UDP 接口（此时处理器与封禁表均已就绪）==========
	var ifaces []*udpiface.Interface
	var startErr error
	if err := loop.Do(ctx, func(r *network.Registry) {
		ifaces, startErr = app.StartInterfaces(cfg.Interfaces, r, sessions, log, appm)
	}); err != nil {
		startErr = err
	}
	if startErr != nil {
		log.Error("udp interfaces start failed", zap.Error(startErr))
		shutdown(log, httpSrv, cancelLoop, loopDone)
		return startErr
	}
	ready.SetNetworkReady(true)
	log.Info("all services ready", zap.Int("interfaces", len(ifaces)))

	// ========== 阶段6: 等待关闭信号 ==========
	<-ctx.Done()
	log.Info("received shutdown signal, gracefully shutting down...")
	ready.SetNetworkReady(false)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := loop.Do(stopCtx, func(r *network.Registry) {
		for _, iface := range ifaces {
			if err := r.UnregisterInterface(iface); err != nil && !errors.Is(err, network.ErrUnknownInterface) {
				log.Warn("unregister interface failed", zap.String("iface", iface.Label()), zap.Error(err))
			}
		}
	}); err != nil {
		log.Warn("interfaces not unregistered by owner loop", zap.Error(err))
	}
	log.Info("udp interfaces stopped")

	shutdown(log, httpSrv, cancelLoop, loopDone)
	log.Info("shutdown complete")
	return nil
}

// shutdown 关闭 HTTP 服务并停止拥有者循环
func shutdown(log *zap.Logger, httpSrv *httpserver.Server, cancelLoop context.CancelFunc, loopDone <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Warn("http server shutdown failed", zap.Error(err))
	}
	log.Info("http server stopped")

	cancelLoop()
	<-loopDone
}
