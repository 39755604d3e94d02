package network

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/taoyao-code/netfront/internal/metrics"
	"go.uber.org/zap"
)

// QuarantineSeconds 坏包来源地址的统一隔离时长
const QuarantineSeconds = 600

// Dispatcher 原始报文分发器：封禁检查 -> 正则匹配 -> 调用处理器 -> 坏包隔离
// 可被多个接口协程并发调用。
type Dispatcher struct {
	bans     *BanList
	handlers *HandlerTable
	logger   *zap.Logger
	metrics  *metrics.AppMetrics
	// onQuarantine 隔离发生后通知上层（把封禁推送到各接口）
	onQuarantine func(address string, timeoutSeconds int)
}

// NewDispatcher 创建分发器，logger 为 nil 时不输出日志
func NewDispatcher(bans *BanList, handlers *HandlerTable, logger *zap.Logger, m *metrics.AppMetrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{bans: bans, handlers: handlers, logger: logger, metrics: m}
}

// SetQuarantineHook 设置隔离通知回调
func (d *Dispatcher) SetQuarantineHook(fn func(address string, timeoutSeconds int)) {
	d.onQuarantine = fn
}

// Dispatch 分发一个原始报文，返回是否被处理
func (d *Dispatcher) Dispatch(source AdvancedNetworkInterface, address string, port int, payload []byte, now time.Time) bool {
	if d.bans.IsBanned(address, now) {
		d.logger.Debug("dropped raw packet from banned address",
			zap.String("address", address),
			zap.Int("port", port),
		)
		d.count(metrics.ResultDroppedBanned)
		return false
	}

	handled := false
	var text string
	handlers := d.handlers.Snapshot()
	if len(handlers) > 0 {
		text = PayloadText(payload)
	}
	for _, h := range handlers {
		if !h.Pattern().MatchString(text) {
			continue
		}
		ok, err := h.Handle(source, address, port, payload)
		if err != nil {
			if errors.Is(err, ErrBadPacket) {
				handled = true
				d.logger.Error("error handling raw packet",
					zap.String("address", address),
					zap.Int("port", port),
					zap.Error(err),
				)
				d.bans.Block(address, QuarantineSeconds, now)
				if d.onQuarantine != nil {
					d.onQuarantine(address, QuarantineSeconds)
				}
				d.count(metrics.ResultBadPacket)
				if d.metrics != nil {
					d.metrics.QuarantineTotal.Inc()
				}
				return true
			}
			d.logger.Warn("raw packet handler failed",
				zap.String("address", address),
				zap.Int("port", port),
				zap.String("pattern", h.Pattern().String()),
				zap.Error(err),
			)
			continue
		}
		handled = handled || ok
	}

	if !handled {
		d.logger.Debug("unhandled raw packet",
			zap.String("address", address),
			zap.Int("port", port),
			zap.String("payload", base64.StdEncoding.EncodeToString(payload)),
		)
		d.count(metrics.ResultUnhandled)
		return false
	}
	d.count(metrics.ResultHandled)
	return true
}

func (d *Dispatcher) count(result string) {
	if d.metrics != nil {
		d.metrics.RawPackets.WithLabelValues(result).Inc()
	}
}
