package app

import (
	"context"
	"errors"
	"time"

	"github.com/taoyao-code/netfront/internal/network"
	"go.uber.org/zap"
)

// ErrLoopStopped 拥有者循环已退出
var ErrLoopStopped = errors.New("owner loop stopped")

type task struct {
	fn   func(r *network.Registry)
	done chan struct{}
}

// Loop 注册表的拥有者协程：唯一的写入方
// 周期性执行 Registry.Tick 与封禁表清理，并串行执行外部（HTTP 等）提交的任务。
type Loop struct {
	registry        *network.Registry
	tickInterval    time.Duration
	compactInterval time.Duration
	tasks           chan task
	stopped         chan struct{}
	logger          *zap.Logger
}

// NewLoop compactInterval <= 0 时不做周期清理
func NewLoop(registry *network.Registry, tickInterval, compactInterval time.Duration, logger *zap.Logger) *Loop {
	if tickInterval <= 0 {
		tickInterval = 50 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		registry:        registry,
		tickInterval:    tickInterval,
		compactInterval: compactInterval,
		tasks:           make(chan task),
		stopped:         make(chan struct{}),
		logger:          logger,
	}
}

// Run 阻塞运行直到 ctx 取消
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.stopped)

	ticker := time.NewTicker(l.tickInterval)
	defer ticker.Stop()

	var compactC <-chan time.Time
	if l.compactInterval > 0 {
		compactTicker := time.NewTicker(l.compactInterval)
		defer compactTicker.Stop()
		compactC = compactTicker.C
	}

	l.logger.Info("owner loop started",
		zap.Duration("tick_interval", l.tickInterval),
		zap.Duration("compact_interval", l.compactInterval))

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("owner loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.registry.Tick()
		case <-compactC:
			l.registry.CompactBans()
		case t := <-l.tasks:
			t.fn(l.registry)
			close(t.done)
		}
	}
}

// Do 提交任务到拥有者协程并等待执行完成
// ctx 只约束排队；任务一旦被循环接收就一定执行完毕，Do 返回 nil 后任务写入的变量可安全读取。
// 返回错误时任务没有执行。
func (l *Loop) Do(ctx context.Context, fn func(r *network.Registry)) error {
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case l.tasks <- t:
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-t.done
	return nil
}
