package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/alertack/internal/domain"
	"github.com/hamed0406/alertack/internal/repo"
)

// Store keeps outcomes in process memory. Rows are copied on the way in and
// out so callers can never mutate a stored row.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	acks   []domain.AckOutcome
	runs   []domain.RunMetrics
}

func New() *Store {
	return &Store{
		acks: make([]domain.AckOutcome, 0, 128),
		runs: make([]domain.RunMetrics, 0, 32),
	}
}

var _ repo.OutcomeStore = (*Store)(nil)

func (m *Store) RecordAck(ctx context.Context, o *domain.AckOutcome) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, repo.Wrap("record_ack", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.AcknowledgedAt.IsZero() {
		o.AcknowledgedAt = time.Now().UTC()
	}
	m.nextID++
	o.ID = m.nextID
	row := *o
	if o.LatencyMS != nil {
		row.LatencyMS = domain.Float64(*o.LatencyMS)
	}
	m.acks = append(m.acks, row)
	return o.ID, nil
}

func (m *Store) RecordRun(ctx context.Context, r *domain.RunMetrics) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, repo.Wrap("record_run", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now().UTC()
	}
	r.ID = int64(len(m.runs) + 1)
	m.runs = append(m.runs, *r)
	return r.ID, nil
}

func (m *Store) Stats(ctx context.Context, w repo.Window) (repo.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		s      repo.Stats
		latSum float64
		latN   int
	)
	for i := range m.acks {
		a := &m.acks[i]
		if !w.Contains(a.AcknowledgedAt) {
			continue
		}
		s.Total++
		if a.Success {
			s.Successful++
		}
		if a.LatencyMS != nil {
			latSum += *a.LatencyMS
			latN++
		}
	}
	if latN > 0 {
		s.AvgLatencyMS = latSum / float64(latN)
	}
	s.Finish()
	return s, nil
}

func (m *Store) HourlyBuckets(ctx context.Context, w repo.Window) ([24]repo.HourBucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b := repo.EmptyBuckets()
	for i := range m.acks {
		a := &m.acks[i]
		if !w.Contains(a.AcknowledgedAt) {
			continue
		}
		h := a.AcknowledgedAt.UTC().Hour()
		if a.Success {
			b[h].Success++
		} else {
			b[h].Failure++
		}
	}
	return b, nil
}

func (m *Store) History(ctx context.Context, f repo.HistoryFilter) (repo.HistoryPage, error) {
	m.mu.RLock()
	matched := make([]domain.AckOutcome, 0, 64)
	for i := range m.acks {
		if f.Match(&m.acks[i]) {
			matched = append(matched, m.acks[i])
		}
	}
	m.mu.RUnlock()

	var p repo.HistoryPage
	for i := range matched {
		p.Total++
		if matched[i].Success {
			p.Successful++
		}
	}
	p.Failed = p.Total - p.Successful

	sortNewestFirst(matched)
	if len(matched) > repo.HistoryLimit {
		matched = matched[:repo.HistoryLimit]
		p.Truncated = true
	}
	p.Rows = matched
	return p, nil
}

func (m *Store) Recent(ctx context.Context, n int) ([]domain.AckOutcome, error) {
	m.mu.RLock()
	out := make([]domain.AckOutcome, len(m.acks))
	copy(out, m.acks)
	m.mu.RUnlock()

	sortNewestFirst(out)
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *Store) RecentRuns(ctx context.Context, n int) ([]domain.RunMetrics, error) {
	if n < 0 {
		n = 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.RunMetrics, 0, n)
	for i := len(m.runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *Store) TotalAcks(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.acks)), nil
}

func (m *Store) Close() error { return nil }

func sortNewestFirst(rows []domain.AckOutcome) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].AcknowledgedAt.Equal(rows[j].AcknowledgedAt) {
			return rows[i].ID > rows[j].ID
		}
		return rows[i].AcknowledgedAt.After(rows[j].AcknowledgedAt)
	})
}
