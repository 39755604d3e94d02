package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/netfront/internal/config"
)

func testConfig() *cfgpkg.Config {
	return &cfgpkg.Config{
		App:     cfgpkg.AppConfig{Name: "netfront", Env: "test", ServerID: "test-1"},
		HTTP:    cfgpkg.HTTPConfig{Addr: "127.0.0.1:0", ReadTimeout: time.Second, WriteTimeout: time.Second},
		Metrics: cfgpkg.MetricsConfig{Enable: true, Path: "/metrics"},
		Network: cfgpkg.NetworkConfig{
			Name:            "netfront",
			DefaultLanName:  "netfront",
			TickInterval:    10 * time.Millisecond,
			CompactInterval: time.Second,
		},
		Interfaces: []cfgpkg.InterfaceConfig{{Name: "v4", Addr: "127.0.0.1:0"}},
		Session:    cfgpkg.SessionConfig{IdleTimeoutSec: 60},
		Query:      cfgpkg.QueryConfig{Enabled: true},
	}
}

func TestRunContext_StartAndStop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	assert.NoError(t, RunContext(ctx, testConfig(), zap.NewNop()))
}

func TestRunContext_InterfaceFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Interfaces = []cfgpkg.InterfaceConfig{{Name: "bad", Addr: "127.0.0.1:99999"}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, RunContext(ctx, cfg, zap.NewNop()))
}

func TestRunContext_BadBanFile(t *testing.T) {
	cfg := testConfig()
	cfg.Network.BanFile = "/nonexistent/bans.yaml"

	assert.Error(t, RunContext(context.Background(), cfg, zap.NewNop()))
}
