// Package reconcile runs one acknowledgment pass: log in, fetch the
// unhandled alerts, acknowledge each one and record what happened.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/alertack/internal/centreon"
	"github.com/hamed0406/alertack/internal/domain"
	"github.com/hamed0406/alertack/internal/metrics"
	"github.com/hamed0406/alertack/internal/repo"
	"github.com/hamed0406/alertack/internal/snapshot"
)

// Backend is the monitoring API. *centreon.Client implements it.
type Backend interface {
	Authenticate(ctx context.Context, timeout time.Duration) (domain.AuthToken, error)
	FetchUnhandled(ctx context.Context, token domain.AuthToken, limit int, timeout time.Duration) ([]domain.Alert, error)
	Acknowledge(ctx context.Context, token domain.AuthToken, a domain.Alert, comment string, timeout time.Duration) centreon.AckResult
}

type Config struct {
	AlertLimit   int
	AckComment   string
	SnapshotPath string // empty disables the snapshot file
	LoginTimeout time.Duration
	APITimeout   time.Duration
	AckTimeout   time.Duration
	StoreTimeout time.Duration
}

// Summary is returned by every run, aborted or not.
type Summary struct {
	RunID       string              `json:"run_id"`
	State       State               `json:"state"`
	StartedAt   time.Time           `json:"started_at"`
	Duration    time.Duration       `json:"duration"`
	Total       int                 `json:"total"`
	Successful  int                 `json:"successful"`
	Failed      int                 `json:"failed"`
	Errors      []domain.AlertError `json:"errors,omitempty"`
	Aborted     bool                `json:"aborted"`
	AbortReason string              `json:"abort_reason,omitempty"`

	// Cancelled is set when the caller's context ended between two
	// acknowledgments. Total then counts only the attempted alerts.
	Cancelled bool `json:"cancelled,omitempty"`
	// SnapshotWritten reports that this run replaced the snapshot file.
	SnapshotWritten bool `json:"snapshot_written"`

	// Alerts is the fetched set, in fetch order.
	Alerts []domain.Alert `json:"-"`
}

type Runner struct {
	backend Backend
	store   repo.OutcomeRecorder
	cfg     Config
	log     *zap.Logger

	now   func() time.Time
	newID func() string

	mu    sync.Mutex // one run at a time per Runner
	state atomic.Int32
}

func NewRunner(b Backend, store repo.OutcomeRecorder, cfg Config, log *zap.Logger) *Runner {
	if store == nil {
		store = repo.NopRecorder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	return &Runner{
		backend: b,
		store:   store,
		cfg:     cfg,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// State is the current state of the run in progress, or Idle/Done.
func (r *Runner) State() State { return State(r.state.Load()) }

func (r *Runner) enter(s State, runID string) {
	r.state.Store(int32(s))
	r.log.Debug("run_state", zap.String("run_id", runID), zap.Stringer("state", s))
}

// RunOnce performs one full pass. It never returns an error: failures are
// reported in the Summary and in the stored run sample.
//
// Network calls are bounded only by their own timeouts. Cancelling ctx
// lets the call in flight finish and stops the run before the next
// acknowledgment; alerts never attempted get no outcome row.
func (r *Runner) RunOnce(ctx context.Context) Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	s := Summary{RunID: r.newID(), StartedAt: r.now()}
	log := r.log.With(zap.String("run_id", s.RunID))
	if ctx.Err() != nil {
		s.Cancelled = true
		s.AbortReason = "cancelled before start"
		s.State = Done
		log.Info("run_skipped_cancelled")
		return s
	}
	log.Info("run_start", zap.Int("alert_limit", r.cfg.AlertLimit))
	netCtx := context.WithoutCancel(ctx)

	r.enter(Authenticating, s.RunID)
	token, err := r.backend.Authenticate(netCtx, r.cfg.LoginTimeout)
	if err != nil {
		return r.abort(ctx, log, s, start, Authenticating, err)
	}

	r.enter(Fetching, s.RunID)
	fetchStart := time.Now()
	alerts, err := r.backend.FetchUnhandled(netCtx, token, r.cfg.AlertLimit, r.cfg.APITimeout)
	if err != nil {
		return r.abort(ctx, log, s, start, Fetching, err)
	}
	apiLatency := domain.Float64(time.Since(fetchStart).Seconds() * 1000)
	s.Alerts = alerts
	s.Total = len(alerts)

	if len(alerts) > 0 && r.cfg.SnapshotPath != "" {
		if err := snapshot.Write(r.cfg.SnapshotPath, alerts, s.StartedAt); err != nil {
			log.Error("snapshot_write_failed", zap.String("path", r.cfg.SnapshotPath), zap.Error(err))
		} else {
			s.SnapshotWritten = true
			log.Info("snapshot_written", zap.String("path", r.cfg.SnapshotPath), zap.Int("count", len(alerts)))
		}
	}

	r.enter(Acknowledging, s.RunID)
	for i, a := range alerts {
		if ctx.Err() != nil {
			s.Cancelled = true
			s.AbortReason = fmt.Sprintf("cancelled after %d of %d alerts", i, len(alerts))
			s.Total = i
			break
		}
		r.acknowledge(netCtx, log, &s, i, a, token)
	}

	r.enter(Recording, s.RunID)
	s.Duration = time.Since(start)
	r.recordRun(ctx, log, &domain.RunMetrics{
		RunID:          s.RunID,
		RecordedAt:     r.now(),
		TotalAlerts:    s.Total,
		SuccessfulAcks: s.Successful,
		FailedAcks:     s.Failed,
		APILatencyMS:   apiLatency,
		DurationMS:     ms(s.Duration),
		Aborted:        s.Cancelled,
		Error:          s.AbortReason,
	})

	r.enter(Done, s.RunID)
	s.State = Done
	result := metrics.ResultSuccess
	if s.Cancelled {
		result = metrics.ResultCancelled
	}
	metrics.RunsTotal.WithLabelValues(result).Inc()
	metrics.RunDuration.Observe(s.Duration.Seconds())
	lvl := log.Info
	if s.Failed > 0 || s.Cancelled {
		lvl = log.Warn
	}
	lvl("run_done",
		zap.Int("total", s.Total),
		zap.Int("successful", s.Successful),
		zap.Int("failed", s.Failed),
		zap.Bool("cancelled", s.Cancelled),
		zap.Duration("took", s.Duration),
	)
	return s
}

func (r *Runner) acknowledge(ctx context.Context, log *zap.Logger, s *Summary, i int, a domain.Alert, token domain.AuthToken) {
	res := r.backend.Acknowledge(ctx, token, a, r.cfg.AckComment, r.cfg.AckTimeout)

	o := &domain.AckOutcome{
		RunID:          s.RunID,
		ServiceID:      a.ServiceID,
		HostID:         a.HostID,
		ServiceName:    a.ServiceName,
		HostName:       a.HostName,
		Status:         a.Status,
		Success:        res.Success,
		ErrorMessage:   res.Error,
		AcknowledgedAt: r.now(),
	}
	// no latency when no request was sent
	if a.HasIdentity() {
		o.LatencyMS = domain.Float64(res.LatencyMS)
		metrics.AckDuration.Observe(res.LatencyMS / 1000)
	}

	fields := []zap.Field{
		zap.Int("n", i+1),
		zap.Int("of", s.Total),
		zap.String("service", a.ServiceName),
		zap.String("host", a.HostName),
		zap.Int64("service_id", a.ServiceID),
		zap.Int64("host_id", a.HostID),
	}
	if res.Success {
		s.Successful++
		metrics.AcksTotal.WithLabelValues(metrics.ResultSuccess).Inc()
		log.Info("ack_ok", append(fields, zap.Float64("latency_ms", res.LatencyMS))...)
	} else {
		s.Failed++
		s.Errors = append(s.Errors, domain.ErrorFor(a, res.Error))
		metrics.AcksTotal.WithLabelValues(metrics.ResultFailure).Inc()
		log.Error("ack_failed", append(fields, zap.String("error", res.Error))...)
	}

	r.recordAck(ctx, log, o)
}

func (r *Runner) abort(ctx context.Context, log *zap.Logger, s Summary, start time.Time, at State, err error) Summary {
	s.Aborted = true
	s.AbortReason = err.Error()
	s.Failed = 1
	s.State = Done
	s.Duration = time.Since(start)

	log.Error("run_aborted", zap.Stringer("during", at), zap.Error(err))
	r.recordRun(ctx, log, &domain.RunMetrics{
		RunID:      s.RunID,
		RecordedAt: r.now(),
		FailedAcks: 1,
		DurationMS: ms(s.Duration),
		Aborted:    true,
		Error:      s.AbortReason,
	})
	r.enter(Done, s.RunID)
	metrics.RunsTotal.WithLabelValues(metrics.ResultAborted).Inc()
	metrics.RunDuration.Observe(s.Duration.Seconds())
	return s
}

// Store writes get their own deadline and survive cancellation of the run
// context so outcomes already obtained are not lost on shutdown.
func (r *Runner) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.cfg.StoreTimeout)
}

func (r *Runner) recordAck(ctx context.Context, log *zap.Logger, o *domain.AckOutcome) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	if _, err := r.store.RecordAck(sctx, o); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("record_ack").Inc()
		log.Error("store_write_failed", zap.String("op", "record_ack"), zap.String("alert", o.ServiceName), zap.Error(err))
	}
}

func (r *Runner) recordRun(ctx context.Context, log *zap.Logger, m *domain.RunMetrics) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	if _, err := r.store.RecordRun(sctx, m); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("record_run").Inc()
		log.Error("store_write_failed", zap.String("op", "record_run"), zap.Error(err))
	}
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
