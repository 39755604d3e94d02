package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// 原始报文分发结果标签
const (
	ResultDroppedBanned = "dropped_banned"
	ResultHandled       = "handled"
	ResultUnhandled     = "unhandled"
	ResultBadPacket     = "bad_packet"
)

// AppMetrics 网络层业务指标
type AppMetrics struct {
	Interfaces        *prometheus.GaugeVec   // labels: kind=basic|advanced
	RawPackets        *prometheus.CounterVec // labels: result
	QuarantineTotal   prometheus.Counter     // 因坏包被隔离的地址次数
	BannedAddresses   prometheus.Gauge       // 封禁表当前条目数（含未清理的过期条目）
	RawHandlers       prometheus.Gauge       // 已注册原始报文处理器数量
	UDPBytesReceived  prometheus.Counter
	UDPBytesSent      prometheus.Counter
	UDPRateLimited    prometheus.Counter // 被令牌桶丢弃的数据报
	SessionCount      prometheus.Gauge   // 当前会话数
	SendFailuresTotal prometheus.Counter // 广播发送失败次数
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		Interfaces: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "network_interfaces",
			Help: "Registered network interfaces by capability.",
		}, []string{"kind"}),
		RawPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "raw_packets_total",
			Help: "Raw packets dispatched by result.",
		}, []string{"result"}),
		QuarantineTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "address_quarantine_total",
			Help: "Addresses quarantined after a bad packet.",
		}),
		BannedAddresses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "banned_addresses",
			Help: "Entries currently held in the ban list.",
		}),
		RawHandlers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raw_handlers",
			Help: "Registered raw packet handlers.",
		}),
		UDPBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udp_bytes_received_total",
			Help: "Total bytes received over UDP interfaces.",
		}),
		UDPBytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udp_bytes_sent_total",
			Help: "Total bytes sent over UDP interfaces.",
		}),
		UDPRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udp_rate_limited_total",
			Help: "Datagrams dropped by the inbound rate limiter.",
		}),
		SessionCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "session_count",
			Help: "Current number of sessions.",
		}),
		SendFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raw_send_failures_total",
			Help: "Raw packet broadcast failures across interfaces.",
		}),
	}
	reg.MustRegister(
		m.Interfaces, m.RawPackets, m.QuarantineTotal, m.BannedAddresses, m.RawHandlers,
		m.UDPBytesReceived, m.UDPBytesSent, m.UDPRateLimited, m.SessionCount, m.SendFailuresTotal,
	)
	return m
}
