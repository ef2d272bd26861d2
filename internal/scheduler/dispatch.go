package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/hamed0406/alertack/internal/domain"
	"github.com/hamed0406/alertack/internal/notify"
	"github.com/hamed0406/alertack/internal/reconcile"
	"github.com/hamed0406/alertack/internal/snapshot"
)

// Dispatcher is satisfied by *notify.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, alerts []domain.Alert, members notify.Membership) notify.DispatchResult
}

// NotifyAfterRun emails the alerts of every completed, non-empty run. When
// the run wrote the snapshot file, the file is the source so the mail
// matches what was saved; otherwise the run's in-memory alert set is used.
// newMembers is called once per dispatch so membership is never cached
// across runs.
func NotifyAfterRun(log *zap.Logger, d Dispatcher, newMembers func() notify.Membership, snapshotPath string) AfterRun {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, s reconcile.Summary) {
		if s.Aborted || s.Cancelled || s.Total == 0 {
			return
		}
		alerts := s.Alerts
		if snapshotPath != "" && s.SnapshotWritten {
			snap, err := snapshot.Read(snapshotPath)
			if err != nil {
				log.Warn("notify_snapshot_read_failed", zap.String("path", snapshotPath), zap.Error(err))
			} else {
				alerts = snap.Alerts
			}
		}
		res := d.Dispatch(ctx, alerts, newMembers())
		log.Info("notify_after_run",
			zap.String("run_id", s.RunID),
			zap.Int("sent", res.Sent),
			zap.Int("failed", res.Failed),
			zap.Int("skipped", res.Skipped),
		)
	}
}
