package main

import (
	"flag"
	"os"

	"github.com/taoyao-code/netfront/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/netfront/internal/config"
	"github.com/taoyao-code/netfront/internal/logging"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "config file path (default: $NETFRONT_CONFIG or configs/netfront.yaml)")
	flag.Parse()

	// 1) 加载配置
	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 启动并阻塞直到收到信号
	if err := bootstrap.Run(cfg, zap.L()); err != nil {
		zap.L().Error("netfront exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
