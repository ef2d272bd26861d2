// Package app assembles the long-lived components from a Config. It is
// shared by the api server and the command-line tool.
package app

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/alertack/internal/centreon"
	"github.com/hamed0406/alertack/internal/config"
	"github.com/hamed0406/alertack/internal/hostgroup"
	"github.com/hamed0406/alertack/internal/notify"
	"github.com/hamed0406/alertack/internal/reconcile"
	"github.com/hamed0406/alertack/internal/repo"
	"github.com/hamed0406/alertack/internal/repo/backend"
	"github.com/hamed0406/alertack/internal/scheduler"
)

type App struct {
	Config config.Config
	Log    *zap.Logger
	Store  repo.OutcomeStore
	Runner *reconcile.Runner
}

// New opens the outcome store and builds the reconciliation runner.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	store, err := backend.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client, err := centreon.New(cfg.Credentials(), centreon.Options{
		Statuses:    cfg.Run.Statuses,
		InsecureTLS: cfg.Centreon.InsecureTLS,
		Logger:      log,
	})
	if err != nil {
		return nil, multierr.Append(err, store.Close())
	}

	runner := reconcile.NewRunner(client, store, RunnerConfig(cfg), log)
	return &App{Config: cfg, Log: log, Store: store, Runner: runner}, nil
}

// RunnerConfig maps the run settings onto reconcile.Config.
func RunnerConfig(cfg config.Config) reconcile.Config {
	return reconcile.Config{
		AlertLimit:   cfg.Run.AlertLimit,
		AckComment:   cfg.Run.AckComment,
		SnapshotPath: cfg.Run.OutputFile,
		LoginTimeout: cfg.Run.LoginTimeout,
		APITimeout:   cfg.Run.APITimeout,
		AckTimeout:   cfg.Run.AckTimeout,
		StoreTimeout: cfg.Run.StoreTimeout,
	}
}

// Dispatcher validates the email settings and builds the SMTP dispatcher.
func Dispatcher(cfg config.Config, log *zap.Logger) (*notify.Dispatcher, error) {
	if err := cfg.Email.Validate(); err != nil {
		return nil, err
	}
	mailer := notify.NewSMTPMailer(cfg.Email)
	log.Info("email_mode", zap.Stringer("mode", mailer.Mode()), zap.String("server", cfg.Email.Host))
	return notify.NewDispatcher(mailer, cfg.Email.MaxPerSecond, log)
}

// Membership returns a factory for run-scoped hostgroup caches.
func Membership(cfg config.Config, log *zap.Logger) func() notify.Membership {
	res := hostgroup.CLIResolver{
		Binary:   cfg.Hostgroup.CLIPath,
		Login:    cfg.Centreon.Login,
		Password: cfg.Centreon.Password,
		Timeout:  cfg.Hostgroup.Timeout,
	}
	return func() notify.Membership {
		return hostgroup.NewCache(res, cfg.Hostgroup.Target, log)
	}
}

// Hooks builds the after-run hooks enabled by the scheduler settings.
func (a *App) Hooks() ([]scheduler.AfterRun, error) {
	var hooks []scheduler.AfterRun

	if s := notify.NewSlack(a.Config.Scheduler.SlackWebhook); s != nil {
		al := scheduler.NewAlerter(s, scheduler.AlerterConfig{
			AlertOnRecovery: a.Config.Scheduler.AlertOnRecovery,
			Cooldown:        a.Config.Scheduler.AlertCooldown,
		}, a.Log)
		hooks = append(hooks, al.Observe)
	}

	if a.Config.Scheduler.NotifyAfterRun {
		d, err := Dispatcher(a.Config, a.Log)
		if err != nil {
			return nil, fmt.Errorf("notify after run: %w", err)
		}
		hooks = append(hooks, scheduler.NotifyAfterRun(a.Log, d, Membership(a.Config, a.Log), a.Config.Run.OutputFile))
	}
	return hooks, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}
