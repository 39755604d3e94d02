package health

import (
	"context"
	"time"

	"github.com/taoyao-code/netfront/internal/network"
)

// StatusSource 网络注册表快照来源
type StatusSource interface {
	Snapshot() network.Status
}

// NetworkChecker 网络注册表健康检查器
// 没有任何已注册接口时为降级：进程仍可被管理，但无法收发报文。
type NetworkChecker struct {
	source StatusSource
}

func NewNetworkChecker(source StatusSource) *NetworkChecker {
	return &NetworkChecker{source: source}
}

func (c *NetworkChecker) Name() string { return "network" }

func (c *NetworkChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	st := c.source.Snapshot()

	advanced := 0
	for _, info := range st.Interfaces {
		if info.Advanced {
			advanced++
		}
	}

	status := StatusHealthy
	message := "ok"
	if len(st.Interfaces) == 0 {
		status = StatusDegraded
		message = "no interfaces registered"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]interface{}{
			"interfaces":          len(st.Interfaces),
			"advanced_interfaces": advanced,
			"banned_addresses":    len(st.Bans),
			"raw_handlers":        len(st.Patterns),
			"sessions":            st.Sessions,
		},
		Latency: time.Since(start),
	}
}
