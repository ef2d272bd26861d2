package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hamed0406/alertack/internal/domain"
	"github.com/hamed0406/alertack/internal/metrics"
)

// Membership answers whether a host is in the notification group.
// *hostgroup.Cache implements it.
type Membership interface {
	IsMember(ctx context.Context, host string) bool
}

// SendError is a failed delivery for one alert.
type SendError struct {
	Alert domain.AlertKey
	Err   error
}

func (e *SendError) Error() string { return fmt.Sprintf("send email for %s: %v", e.Alert, e.Err) }
func (e *SendError) Unwrap() error { return e.Err }

// DispatchResult tallies one Dispatch call. Skipped covers alerts with no
// host name and hosts outside the group.
type DispatchResult struct {
	Sent    int                 `json:"sent"`
	Failed  int                 `json:"failed"`
	Skipped int                 `json:"skipped"`
	Errors  []domain.AlertError `json:"errors,omitempty"`
}

// Dispatcher emails every alert whose host is in the group.
type Dispatcher struct {
	mailer  Mailer
	tmpl    *Templates
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewDispatcher throttles sends to maxPerSecond when it is positive.
func NewDispatcher(m Mailer, maxPerSecond float64, log *zap.Logger) (*Dispatcher, error) {
	tmpl, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{mailer: m, tmpl: tmpl, log: log}
	if maxPerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(maxPerSecond), 1)
	}
	return d, nil
}

// Dispatch walks alerts in order. A failed send is recorded and the next
// alert proceeds.
func (d *Dispatcher) Dispatch(ctx context.Context, alerts []domain.Alert, members Membership) DispatchResult {
	var res DispatchResult
	start := time.Now()
	d.log.Info("dispatch_start", zap.Int("alerts", len(alerts)))

	for i, a := range alerts {
		if a.HostMissing || a.HostName == "" {
			d.log.Warn("dispatch_missing_host", zap.Int("index", i), zap.String("service", a.ServiceName))
			res.Skipped++
			metrics.NotificationsTotal.WithLabelValues(metrics.ResultSkipped).Inc()
			continue
		}
		if !members.IsMember(ctx, a.HostName) {
			res.Skipped++
			metrics.NotificationsTotal.WithLabelValues(metrics.ResultSkipped).Inc()
			continue
		}
		if err := d.send(ctx, a); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, domain.ErrorFor(a, err.Error()))
			metrics.NotificationsTotal.WithLabelValues(metrics.ResultFailure).Inc()
			d.log.Error("email_send_failed",
				zap.String("host", a.HostName),
				zap.String("service", a.ServiceName),
				zap.Error(err),
			)
			continue
		}
		res.Sent++
		metrics.NotificationsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
		d.log.Info("email_sent", zap.String("host", a.HostName), zap.String("service", a.ServiceName))
	}

	d.log.Info("dispatch_done",
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
		zap.Duration("took", time.Since(start)),
	)
	return res
}

func (d *Dispatcher) send(ctx context.Context, a domain.Alert) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return &SendError{Alert: a.Key(), Err: fmt.Errorf("throttle: %w", err)}
		}
	}
	msg, err := d.tmpl.Render(a)
	if err != nil {
		return &SendError{Alert: a.Key(), Err: err}
	}
	if err := d.mailer.Send(ctx, msg); err != nil {
		return &SendError{Alert: a.Key(), Err: err}
	}
	return nil
}
