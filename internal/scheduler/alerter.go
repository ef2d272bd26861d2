package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/alertack/internal/notify"
	"github.com/hamed0406/alertack/internal/reconcile"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
}

// Alerter reports run health changes (healthy <-> failing) to a notifier.
// A run is failing when it aborted or when none of its alerts could be
// acknowledged.
type Alerter struct {
	notifier notify.Notifier
	cfg      AlerterConfig
	log      *zap.Logger
	now      func() time.Time

	mu         sync.Mutex
	lastState  *bool // healthy?
	lastSentAt time.Time
}

func NewAlerter(n notify.Notifier, cfg AlerterConfig, log *zap.Logger) *Alerter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Alerter{notifier: n, cfg: cfg, log: log, now: time.Now}
}

func Healthy(s reconcile.Summary) bool {
	if s.Aborted {
		return false
	}
	return s.Total == 0 || s.Successful > 0
}

// Observe is an AfterRun hook. Cancelled runs say nothing about the
// backend and leave the health state unchanged.
func (a *Alerter) Observe(ctx context.Context, s reconcile.Summary) {
	if s.Cancelled {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	up := Healthy(s)
	now := a.now()

	stateChanged := a.lastState == nil || *a.lastState != up
	cooled := a.lastSentAt.IsZero() || now.Sub(a.lastSentAt) >= a.cfg.Cooldown

	// the first observation of a healthy run is not a recovery
	failingAlert := stateChanged && !up && cooled
	recoveryAlert := stateChanged && up && a.lastState != nil && a.cfg.AlertOnRecovery

	if stateChanged {
		a.lastState = &up
	}
	if !failingAlert && !recoveryAlert {
		return
	}

	title := "🔴 Acknowledgment runs FAILING"
	if up {
		title = "🟢 Acknowledgment runs RECOVERED"
	}
	if err := a.notifier.Send(ctx, title, describe(s)); err != nil {
		a.log.Warn("health_alert_send_failed", zap.String("run_id", s.RunID), zap.Error(err))
		return
	}
	a.lastSentAt = now
	a.log.Info("health_alert_sent", zap.String("run_id", s.RunID), zap.Bool("healthy", up))
}

func describe(s reconcile.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\nStarted: %s\n", s.RunID, s.StartedAt.Format(time.RFC3339))
	if s.Aborted {
		fmt.Fprintf(&b, "Aborted: %s\n", s.AbortReason)
		return b.String()
	}
	fmt.Fprintf(&b, "Alerts: %d\nAcknowledged: %d\nFailed: %d\n", s.Total, s.Successful, s.Failed)
	for i, e := range s.Errors {
		if i == 3 {
			fmt.Fprintf(&b, "... and %d more\n", len(s.Errors)-i)
			break
		}
		fmt.Fprintf(&b, "- %s on %s: %s\n", e.ServiceName, e.HostName, e.Message)
	}
	return b.String()
}
