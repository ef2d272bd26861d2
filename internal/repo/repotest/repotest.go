// Package repotest is a conformance suite every repo.OutcomeStore backend
// runs from its own tests.
package repotest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/alertack/internal/domain"
	"github.com/hamed0406/alertack/internal/repo"
)

// Factory returns an empty store; cleanup is the factory's job.
type Factory func(t *testing.T) repo.OutcomeStore

var base = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func ack(at time.Time, ok bool, status domain.Status, lat *float64) *domain.AckOutcome {
	o := &domain.AckOutcome{
		RunID:          "run-" + at.Format("150405"),
		ServiceID:      int64(at.Minute() + 1),
		HostID:         int64(at.Hour() + 1),
		ServiceName:    "svc",
		HostName:       "host",
		Status:         status,
		Success:        ok,
		LatencyMS:      lat,
		AcknowledgedAt: at,
	}
	if !ok {
		o.ErrorMessage = "acknowledgment timeout for service 1"
	}
	return o
}

func seed(t *testing.T, s repo.OutcomeStore, rows ...*domain.AckOutcome) {
	t.Helper()
	for _, o := range rows {
		id, err := s.RecordAck(context.Background(), o)
		require.NoError(t, err)
		require.NotZero(t, id)
	}
}

// Run executes every conformance check against fresh stores from f.
func Run(t *testing.T, f Factory) {
	t.Run("StatsHalfOpenWindowAndLatency", func(t *testing.T) { testStats(t, f(t)) })
	t.Run("HourlyBucketsMatchStats", func(t *testing.T) { testHourly(t, f(t)) })
	t.Run("HistoryTruncatesButCountsAll", func(t *testing.T) { testHistoryTruncation(t, f(t)) })
	t.Run("HistoryFilters", func(t *testing.T) { testHistoryFilters(t, f(t)) })
	t.Run("RecentAndTotals", func(t *testing.T) { testRecent(t, f(t)) })
	t.Run("RunMetrics", func(t *testing.T) { testRuns(t, f(t)) })
}

func testStats(t *testing.T, s repo.OutcomeStore) {
	ctx := context.Background()
	w := repo.Window{From: base, To: base.Add(24 * time.Hour)}
	seed(t, s,
		ack(base, true, domain.StatusCritical, domain.Float64(100)),
		ack(base.Add(time.Hour), true, domain.StatusWarning, domain.Float64(300)),
		ack(base.Add(2*time.Hour), false, domain.StatusCritical, nil), // no latency recorded
		ack(base.Add(-time.Second), true, domain.StatusCritical, domain.Float64(5)), // before window
		ack(w.To, false, domain.StatusCritical, domain.Float64(5)),                  // upper bound excluded
	)

	st, err := s.Stats(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Total)
	assert.Equal(t, int64(2), st.Successful)
	assert.Equal(t, int64(1), st.Failed)
	assert.InDelta(t, 200.0, st.AvgLatencyMS, 1e-6, "avg must ignore rows without latency")
	assert.InDelta(t, 66.67, st.SuccessRate, 1e-9)

	empty, err := s.Stats(ctx, repo.Window{From: base.AddDate(1, 0, 0), To: base.AddDate(1, 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, repo.Stats{}, empty)
}

func testHourly(t *testing.T, s repo.OutcomeStore) {
	ctx := context.Background()
	// rolling 24h window that starts mid-day and wraps past midnight
	w := repo.Window{From: base.Add(13 * time.Hour), To: base.Add(37 * time.Hour)}
	seed(t, s,
		ack(base.Add(13*time.Hour), true, domain.StatusCritical, domain.Float64(1)),
		ack(base.Add(13*time.Hour+59*time.Minute), false, domain.StatusCritical, domain.Float64(1)),
		ack(base.Add(23*time.Hour+30*time.Minute), true, domain.StatusWarning, nil),
		ack(base.Add(24*time.Hour+5*time.Minute), true, domain.StatusWarning, domain.Float64(1)),
		ack(base.Add(36*time.Hour+59*time.Minute), false, domain.StatusWarning, domain.Float64(1)),
		ack(base.Add(12*time.Hour), true, domain.StatusWarning, domain.Float64(1)), // outside
	)

	buckets, err := s.HourlyBuckets(ctx, w)
	require.NoError(t, err)
	require.Len(t, buckets, 24)

	var sum int64
	for i, b := range buckets {
		assert.Equal(t, i, b.Hour)
		sum += b.Success + b.Failure
	}
	assert.Equal(t, int64(1), buckets[13].Success)
	assert.Equal(t, int64(1), buckets[13].Failure)
	assert.Equal(t, int64(1), buckets[23].Success)
	assert.Equal(t, int64(1), buckets[0].Success)
	assert.Equal(t, int64(1), buckets[12].Failure, "hour 12 of the next day is inside the window")
	assert.Equal(t, int64(0), buckets[12].Success, "hour 12 of the first day is outside the window")

	st, err := s.Stats(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, st.Total, sum)

	empty, err := s.HourlyBuckets(ctx, repo.Window{From: base.AddDate(1, 0, 0), To: base.AddDate(1, 0, 1)})
	require.NoError(t, err)
	for i, b := range empty {
		assert.Equal(t, repo.HourBucket{Hour: i}, b)
	}
}

func testHistoryTruncation(t *testing.T, s repo.OutcomeStore) {
	ctx := context.Background()
	const n = 130
	for i := 0; i < n; i++ {
		seed(t, s, ack(base.Add(time.Duration(i)*time.Minute), i%3 != 0, domain.StatusCritical, domain.Float64(float64(i))))
	}

	p, err := s.History(ctx, repo.HistoryFilter{StartDate: base, EndDate: base})
	require.NoError(t, err)
	require.Len(t, p.Rows, repo.HistoryLimit)
	assert.True(t, p.Truncated)
	assert.Equal(t, int64(n), p.Total)
	assert.Equal(t, int64(44), p.Failed) // i%3==0 for i in [0,130)
	assert.Equal(t, int64(n-44), p.Successful)

	for i := 1; i < len(p.Rows); i++ {
		assert.False(t, p.Rows[i].AcknowledgedAt.After(p.Rows[i-1].AcknowledgedAt), "rows must be newest first")
	}
	assert.True(t, p.Rows[0].AcknowledgedAt.Equal(base.Add((n-1)*time.Minute)))
}

func testHistoryFilters(t *testing.T, s repo.OutcomeStore) {
	ctx := context.Background()
	seed(t, s,
		ack(base.Add(-time.Minute), true, domain.StatusCritical, nil), // day before
		ack(base.Add(time.Hour), true, domain.StatusCritical, nil),
		ack(base.Add(2*time.Hour), false, domain.StatusCritical, nil),
		ack(base.Add(26*time.Hour), false, domain.StatusWarning, nil),
		ack(base.Add(47*time.Hour+59*time.Minute), true, domain.StatusWarning, nil), // last minute of end day
		ack(base.Add(48*time.Hour), true, domain.StatusWarning, nil),                // day after end
	)
	end := base.AddDate(0, 0, 1)

	all, err := s.History(ctx, repo.HistoryFilter{StartDate: base, EndDate: end})
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.Total)
	assert.Len(t, all.Rows, 4)
	assert.False(t, all.Truncated)

	crit, err := s.History(ctx, repo.HistoryFilter{StartDate: base, EndDate: end, Status: domain.StatusCritical})
	require.NoError(t, err)
	assert.Equal(t, int64(2), crit.Total)
	assert.Equal(t, int64(1), crit.Failed)

	no := false
	failed, err := s.History(ctx, repo.HistoryFilter{StartDate: base, EndDate: end, Success: &no})
	require.NoError(t, err)
	assert.Equal(t, int64(2), failed.Total)
	assert.Equal(t, int64(0), failed.Successful)
	for _, r := range failed.Rows {
		assert.False(t, r.Success)
		assert.NotEmpty(t, r.ErrorMessage)
	}
}

func testRecent(t *testing.T, s repo.OutcomeStore) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		seed(t, s, ack(base.Add(time.Duration(i)*time.Second), true, domain.StatusWarning, domain.Float64(1.5)))
	}
	rows, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].AcknowledgedAt.Equal(base.Add(4*time.Second)))
	require.NotNil(t, rows[0].LatencyMS)
	assert.InDelta(t, 1.5, *rows[0].LatencyMS, 1e-9)
	assert.Equal(t, domain.StatusWarning, rows[0].Status)

	total, err := s.TotalAcks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func testRuns(t *testing.T, s repo.OutcomeStore) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		m := &domain.RunMetrics{
			RunID:          fmt.Sprintf("run-%d", i),
			RecordedAt:     base.Add(time.Duration(i) * time.Minute),
			TotalAlerts:    3,
			SuccessfulAcks: 2,
			FailedAcks:     1,
			APILatencyMS:   domain.Float64(42),
			DurationMS:     1234,
		}
		id, err := s.RecordRun(ctx, m)
		require.NoError(t, err)
		assert.NotZero(t, id)
	}
	aborted := &domain.RunMetrics{RunID: "run-x", RecordedAt: base.Add(time.Hour), FailedAcks: 1, Aborted: true, Error: "authentication failed"}
	_, err := s.RecordRun(ctx, aborted)
	require.NoError(t, err)

	runs, err := s.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-x", runs[0].RunID)
	assert.True(t, runs[0].Aborted)
	assert.Nil(t, runs[0].APILatencyMS)
	assert.Equal(t, "run-2", runs[1].RunID)
	assert.Equal(t, runs[1].TotalAlerts, runs[1].SuccessfulAcks+runs[1].FailedAcks)
	require.NotNil(t, runs[1].APILatencyMS)
	assert.InDelta(t, 42.0, *runs[1].APILatencyMS, 1e-9)
}
