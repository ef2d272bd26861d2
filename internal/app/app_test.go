package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hamed0406/alertack/internal/config"
	"github.com/hamed0406/alertack/internal/notify"
	"github.com/hamed0406/alertack/internal/reconcile"
)

func baseConfig() config.Config {
	var cfg config.Config
	cfg.Centreon.BaseURL = "https://centreon.invalid/centreon/api/latest"
	cfg.Centreon.Login = "svc"
	cfg.Centreon.Password = "secret"
	cfg.Run.AlertLimit = 50
	cfg.Run.AckComment = "auto"
	cfg.Run.OutputFile = "out.json"
	cfg.Run.AckTimeout = 20 * time.Second
	cfg.DatabaseURL = "memory"
	cfg.Hostgroup.Target = "SQUARE"
	return cfg
}

func TestNew_MemoryStore(t *testing.T) {
	a, err := New(context.Background(), baseConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, reconcile.Idle, a.Runner.State())
	total, err := a.Store.TotalAcks(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestNew_BadStoreURL(t *testing.T) {
	cfg := baseConfig()
	cfg.DatabaseURL = "mysql://nope"
	_, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestRunnerConfig(t *testing.T) {
	rc := RunnerConfig(baseConfig())
	assert.Equal(t, 50, rc.AlertLimit)
	assert.Equal(t, "auto", rc.AckComment)
	assert.Equal(t, "out.json", rc.SnapshotPath)
	assert.Equal(t, 20*time.Second, rc.AckTimeout)
}

func TestHooks(t *testing.T) {
	log := zaptest.NewLogger(t)

	a := &App{Config: baseConfig(), Log: log}
	hooks, err := a.Hooks()
	require.NoError(t, err)
	assert.Empty(t, hooks)

	a.Config.Scheduler.SlackWebhook = "https://hooks.slack.invalid/x"
	hooks, err = a.Hooks()
	require.NoError(t, err)
	assert.Len(t, hooks, 1)

	a.Config.Scheduler.NotifyAfterRun = true
	_, err = a.Hooks()
	require.Error(t, err, "notify without email recipients must fail")

	a.Config.Email = notify.EmailConfig{Host: "localhost", Port: 25, From: "centreon@localhost", To: []string{"ops@example.com"}}
	hooks, err = a.Hooks()
	require.NoError(t, err)
	assert.Len(t, hooks, 2)
}

func TestMembership_FreshCachePerCall(t *testing.T) {
	f := Membership(baseConfig(), zaptest.NewLogger(t))
	assert.NotSame(t, f(), f())
}
