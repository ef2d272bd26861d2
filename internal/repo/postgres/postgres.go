package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/alertack/internal/domain"
	"github.com/hamed0406/alertack/internal/repo"
)

var _ repo.OutcomeStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// Schema is applied by New; every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS acknowledgments (
  id              BIGSERIAL PRIMARY KEY,
  run_id          TEXT             NOT NULL,
  service_id      BIGINT           NOT NULL,
  host_id         BIGINT           NOT NULL,
  service_name    TEXT             NOT NULL DEFAULT '',
  host_name       TEXT             NOT NULL DEFAULT '',
  status          TEXT             NOT NULL,
  success         BOOLEAN          NOT NULL,
  error_message   TEXT             NULL,
  response_time   DOUBLE PRECISION NULL,
  acknowledged_at TIMESTAMPTZ      NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_acks_time ON acknowledgments (acknowledged_at DESC);
CREATE INDEX IF NOT EXISTS idx_acks_run  ON acknowledgments (run_id);

CREATE TABLE IF NOT EXISTS run_metrics (
  id                BIGSERIAL PRIMARY KEY,
  run_id            TEXT             NOT NULL,
  recorded_at       TIMESTAMPTZ      NOT NULL,
  total_alerts      INTEGER          NOT NULL,
  successful_acks   INTEGER          NOT NULL,
  failed_acks       INTEGER          NOT NULL,
  api_response_time DOUBLE PRECISION NULL,
  execution_time    DOUBLE PRECISION NOT NULL,
  aborted           BOOLEAN          NOT NULL DEFAULT false,
  error             TEXT             NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_time ON run_metrics (recorded_at DESC);
`

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info("postgres_store_ready")
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) RecordAck(ctx context.Context, o *domain.AckOutcome) (int64, error) {
	if o.AcknowledgedAt.IsZero() {
		o.AcknowledgedAt = time.Now().UTC()
	}
	var id int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO acknowledgments
			   (run_id, service_id, host_id, service_name, host_name, status,
			    success, error_message, response_time, acknowledged_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			 RETURNING id`,
			o.RunID, o.ServiceID, o.HostID, o.ServiceName, o.HostName, string(o.Status),
			o.Success, textOrNil(o.ErrorMessage), o.LatencyMS, o.AcknowledgedAt.UTC(),
		).Scan(&id)
	})
	if err != nil {
		return 0, repo.Wrap("record_ack", err)
	}
	o.ID = id
	return id, nil
}

func (s *Store) RecordRun(ctx context.Context, m *domain.RunMetrics) (int64, error) {
	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now().UTC()
	}
	var id int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO run_metrics
			   (run_id, recorded_at, total_alerts, successful_acks, failed_acks,
			    api_response_time, execution_time, aborted, error)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			 RETURNING id`,
			m.RunID, m.RecordedAt.UTC(), m.TotalAlerts, m.SuccessfulAcks, m.FailedAcks,
			m.APILatencyMS, m.DurationMS, m.Aborted, textOrNil(m.Error),
		).Scan(&id)
	})
	if err != nil {
		return 0, repo.Wrap("record_run", err)
	}
	m.ID = id
	return id, nil
}

func (s *Store) Stats(ctx context.Context, w repo.Window) (repo.Stats, error) {
	var (
		st  repo.Stats
		avg *float64
	)
	err := s.pool.QueryRow(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE success),
       AVG(response_time)
  FROM acknowledgments
 WHERE acknowledged_at >= $1 AND acknowledged_at < $2`,
		w.From.UTC(), w.To.UTC(),
	).Scan(&st.Total, &st.Successful, &avg)
	if err != nil {
		return repo.Stats{}, repo.Wrap("stats", err)
	}
	if avg != nil {
		st.AvgLatencyMS = *avg
	}
	st.Finish()
	return st, nil
}

func (s *Store) HourlyBuckets(ctx context.Context, w repo.Window) ([24]repo.HourBucket, error) {
	b := repo.EmptyBuckets()
	rows, err := s.pool.Query(ctx, `
SELECT EXTRACT(HOUR FROM acknowledged_at AT TIME ZONE 'UTC')::int AS hour,
       COUNT(*) FILTER (WHERE success),
       COUNT(*) FILTER (WHERE NOT success)
  FROM acknowledgments
 WHERE acknowledged_at >= $1 AND acknowledged_at < $2
 GROUP BY hour`,
		w.From.UTC(), w.To.UTC(),
	)
	if err != nil {
		return b, repo.Wrap("hourly", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			h         int
			ok, fails int64
		)
		if err := rows.Scan(&h, &ok, &fails); err != nil {
			return b, repo.Wrap("hourly", err)
		}
		if h < 0 || h > 23 {
			continue
		}
		b[h].Success, b[h].Failure = ok, fails
	}
	return b, repo.Wrap("hourly", rows.Err())
}

func (s *Store) History(ctx context.Context, f repo.HistoryFilter) (repo.HistoryPage, error) {
	where, args := historyWhere(f)

	var p repo.HistoryPage
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE success) FROM acknowledgments WHERE `+where, args...,
	).Scan(&p.Total, &p.Successful)
	if err != nil {
		return p, repo.Wrap("history_count", err)
	}
	p.Failed = p.Total - p.Successful

	limit := fmt.Sprintf(" LIMIT $%d", len(args)+1)
	rows, err := s.queryAcks(ctx, `WHERE `+where+` ORDER BY acknowledged_at DESC, id DESC`+limit,
		append(args, repo.HistoryLimit)...)
	if err != nil {
		return p, repo.Wrap("history", err)
	}
	p.Rows = rows
	p.Truncated = p.Total > int64(len(rows))
	return p, nil
}

func (s *Store) Recent(ctx context.Context, n int) ([]domain.AckOutcome, error) {
	rows, err := s.queryAcks(ctx, `ORDER BY acknowledged_at DESC, id DESC LIMIT $1`, n)
	return rows, repo.Wrap("recent", err)
}

func (s *Store) RecentRuns(ctx context.Context, n int) ([]domain.RunMetrics, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, run_id, recorded_at, total_alerts, successful_acks, failed_acks,
       api_response_time, execution_time, aborted, COALESCE(error, '')
  FROM run_metrics
 ORDER BY recorded_at DESC, id DESC
 LIMIT $1`, n)
	if err != nil {
		return nil, repo.Wrap("recent_runs", err)
	}
	defer rows.Close()

	var out []domain.RunMetrics
	for rows.Next() {
		var m domain.RunMetrics
		if err := rows.Scan(&m.ID, &m.RunID, &m.RecordedAt, &m.TotalAlerts, &m.SuccessfulAcks,
			&m.FailedAcks, &m.APILatencyMS, &m.DurationMS, &m.Aborted, &m.Error); err != nil {
			return nil, repo.Wrap("recent_runs", err)
		}
		m.RecordedAt = m.RecordedAt.UTC()
		out = append(out, m)
	}
	return out, repo.Wrap("recent_runs", rows.Err())
}

func (s *Store) TotalAcks(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM acknowledgments`).Scan(&n)
	return n, repo.Wrap("total_acks", err)
}

func (s *Store) queryAcks(ctx context.Context, tail string, args ...any) ([]domain.AckOutcome, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, run_id, service_id, host_id, service_name, host_name, status,
       success, COALESCE(error_message, ''), response_time, acknowledged_at
  FROM acknowledgments `+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AckOutcome, 0, 16)
	for rows.Next() {
		var (
			o      domain.AckOutcome
			status string
		)
		if err := rows.Scan(&o.ID, &o.RunID, &o.ServiceID, &o.HostID, &o.ServiceName, &o.HostName,
			&status, &o.Success, &o.ErrorMessage, &o.LatencyMS, &o.AcknowledgedAt); err != nil {
			return nil, err
		}
		o.Status = domain.Status(status)
		o.AcknowledgedAt = o.AcknowledgedAt.UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

func historyWhere(f repo.HistoryFilter) (string, []any) {
	w := f.Bounds()
	conds := []string{"acknowledged_at >= $1", "acknowledged_at < $2"}
	args := []any{w.From, w.To}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Success != nil {
		args = append(args, *f.Success)
		conds = append(conds, fmt.Sprintf("success = $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

func textOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
