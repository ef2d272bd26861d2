package repo

import (
	"context"

	"github.com/hamed0406/alertack/internal/domain"
)

// OutcomeRecorder is what a reconciliation run writes to. Each call is one
// atomic write; callers treat errors as non-fatal.
type OutcomeRecorder interface {
	RecordAck(ctx context.Context, o *domain.AckOutcome) (int64, error)
	RecordRun(ctx context.Context, m *domain.RunMetrics) (int64, error)
}

// StatsReader answers the read API's aggregate queries.
type StatsReader interface {
	Stats(ctx context.Context, w Window) (Stats, error)
	HourlyBuckets(ctx context.Context, w Window) ([24]HourBucket, error)
	History(ctx context.Context, f HistoryFilter) (HistoryPage, error)
	Recent(ctx context.Context, n int) ([]domain.AckOutcome, error)
	RecentRuns(ctx context.Context, n int) ([]domain.RunMetrics, error)
	TotalAcks(ctx context.Context) (int64, error)
}

// OutcomeStore is a full persistence backend.
type OutcomeStore interface {
	OutcomeRecorder
	StatsReader
	Close() error
}

// NopRecorder discards everything; used when no store is configured.
type NopRecorder struct{}

func (NopRecorder) RecordAck(context.Context, *domain.AckOutcome) (int64, error) { return 0, nil }
func (NopRecorder) RecordRun(context.Context, *domain.RunMetrics) (int64, error)  { return 0, nil }
