package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/alertack/internal/reconcile"
)

// Reconciler performs one reconciliation pass. *reconcile.Runner
// implements it.
type Reconciler interface {
	RunOnce(ctx context.Context) reconcile.Summary
}

// AfterRun is called with every run's summary, in registration order.
type AfterRun func(ctx context.Context, s reconcile.Summary)

type Loop struct {
	Logger   *zap.Logger
	Runner   Reconciler
	Interval time.Duration
	Hooks    []AfterRun
}

func NewLoop(logger *zap.Logger, r Reconciler, interval time.Duration, hooks ...AfterRun) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval < 0 {
		interval = 0
	}
	return &Loop{Logger: logger, Runner: r, Interval: interval, Hooks: hooks}
}

// Run does an immediate pass, then one per tick, until ctx is cancelled.
// A zero interval disables the loop.
func (l *Loop) Run(ctx context.Context) {
	if l.Interval == 0 {
		l.Logger.Info("scheduler_disabled")
		return
	}
	t := time.NewTicker(l.Interval)
	defer t.Stop()

	l.Logger.Info("scheduler_started", zap.Duration("interval", l.Interval))
	l.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			l.Logger.Info("scheduler_stopped")
			return
		case <-t.C:
			l.RunOnce(ctx)
		}
	}
}

// RunOnce runs the reconciler and then the hooks. A panicking hook is
// logged and does not stop the loop.
func (l *Loop) RunOnce(ctx context.Context) reconcile.Summary {
	s := l.Runner.RunOnce(ctx)
	for i, h := range l.Hooks {
		l.safeHook(ctx, i, h, s)
	}
	return s
}

func (l *Loop) safeHook(ctx context.Context, i int, h AfterRun, s reconcile.Summary) {
	defer func() {
		if p := recover(); p != nil {
			l.Logger.Error("scheduler_hook_panic",
				zap.Int("hook", i),
				zap.String("run_id", s.RunID),
				zap.String("panic", fmt.Sprint(p)),
			)
		}
	}()
	h(ctx, s)
}
