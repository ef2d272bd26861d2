// Package sqlite is the default outcome store, backed by a single SQLite
// file through the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/alertack/internal/domain"
	"github.com/hamed0406/alertack/internal/repo"
)

var _ repo.OutcomeStore = (*Store)(nil)

type Store struct {
	db  *sql.DB
	log *zap.Logger
	mu  sync.Mutex // serialize migrations
}

// Open opens (or creates) the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection: reads and writes from this process are serialized and
	// the per-connection pragmas below stay in effect. WAL lets another
	// process (the CLI) read while this one writes.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	s := &Store{db: db, log: log}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Tx runs fn in a transaction, committing on nil and rolling back otherwise.
func (s *Store) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) RecordAck(ctx context.Context, o *domain.AckOutcome) (int64, error) {
	if o.AcknowledgedAt.IsZero() {
		o.AcknowledgedAt = time.Now().UTC()
	}
	var id int64
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO acknowledgments
			  (run_id, service_id, host_id, service_name, host_name, status,
			   success, error_message, response_time, acknowledged_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.RunID, o.ServiceID, o.HostID, o.ServiceName, o.HostName, string(o.Status),
			o.Success, nullString(o.ErrorMessage), nullFloat(o.LatencyMS), toMillis(o.AcknowledgedAt),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
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
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO run_metrics
			  (run_id, recorded_at, total_alerts, successful_acks, failed_acks,
			   api_response_time, execution_time, aborted, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.RunID, toMillis(m.RecordedAt), m.TotalAlerts, m.SuccessfulAcks, m.FailedAcks,
			nullFloat(m.APILatencyMS), m.DurationMS, m.Aborted, nullString(m.Error),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
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
		avg sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(success), 0), AVG(response_time)
		  FROM acknowledgments
		 WHERE acknowledged_at >= ? AND acknowledged_at < ?`,
		toMillis(w.From), toMillis(w.To),
	).Scan(&st.Total, &st.Successful, &avg)
	if err != nil {
		return repo.Stats{}, repo.Wrap("stats", err)
	}
	st.AvgLatencyMS = avg.Float64
	st.Finish()
	return st, nil
}

func (s *Store) HourlyBuckets(ctx context.Context, w repo.Window) ([24]repo.HourBucket, error) {
	b := repo.EmptyBuckets()
	rows, err := s.db.QueryContext(ctx, `
		SELECT (acknowledged_at / 1000 % 86400) / 3600 AS hour,
		       SUM(CASE WHEN success THEN 1 ELSE 0 END),
		       SUM(CASE WHEN success THEN 0 ELSE 1 END)
		  FROM acknowledgments
		 WHERE acknowledged_at >= ? AND acknowledged_at < ?
		 GROUP BY hour`,
		toMillis(w.From), toMillis(w.To),
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
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(success), 0) FROM acknowledgments WHERE `+where, args...,
	).Scan(&p.Total, &p.Successful)
	if err != nil {
		return p, repo.Wrap("history_count", err)
	}
	p.Failed = p.Total - p.Successful

	rows, err := s.queryAcks(ctx, `WHERE `+where+` ORDER BY acknowledged_at DESC, id DESC LIMIT ?`,
		append(args, repo.HistoryLimit)...)
	if err != nil {
		return p, repo.Wrap("history", err)
	}
	p.Rows = rows
	p.Truncated = p.Total > int64(len(rows))
	return p, nil
}

func (s *Store) Recent(ctx context.Context, n int) ([]domain.AckOutcome, error) {
	rows, err := s.queryAcks(ctx, `ORDER BY acknowledged_at DESC, id DESC LIMIT ?`, n)
	return rows, repo.Wrap("recent", err)
}

func (s *Store) RecentRuns(ctx context.Context, n int) ([]domain.RunMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, recorded_at, total_alerts, successful_acks, failed_acks,
		       api_response_time, execution_time, aborted, error
		  FROM run_metrics
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`, n)
	if err != nil {
		return nil, repo.Wrap("recent_runs", err)
	}
	defer rows.Close()

	var out []domain.RunMetrics
	for rows.Next() {
		var (
			m        domain.RunMetrics
			recorded int64
			api      sql.NullFloat64
			msg      sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.RunID, &recorded, &m.TotalAlerts, &m.SuccessfulAcks,
			&m.FailedAcks, &api, &m.DurationMS, &m.Aborted, &msg); err != nil {
			return nil, repo.Wrap("recent_runs", err)
		}
		m.RecordedAt = fromMillis(recorded)
		m.APILatencyMS = floatPtr(api)
		m.Error = msg.String
		out = append(out, m)
	}
	return out, repo.Wrap("recent_runs", rows.Err())
}

func (s *Store) TotalAcks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM acknowledgments`).Scan(&n)
	return n, repo.Wrap("total_acks", err)
}

func (s *Store) queryAcks(ctx context.Context, tail string, args ...any) ([]domain.AckOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, service_id, host_id, service_name, host_name, status,
		       success, error_message, response_time, acknowledged_at
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
			msg    sql.NullString
			lat    sql.NullFloat64
			at     int64
		)
		if err := rows.Scan(&o.ID, &o.RunID, &o.ServiceID, &o.HostID, &o.ServiceName,
			&o.HostName, &status, &o.Success, &msg, &lat, &at); err != nil {
			return nil, err
		}
		o.Status = domain.Status(status)
		o.ErrorMessage = msg.String
		o.LatencyMS = floatPtr(lat)
		o.AcknowledgedAt = fromMillis(at)
		out = append(out, o)
	}
	return out, rows.Err()
}

func historyWhere(f repo.HistoryFilter) (string, []any) {
	w := f.Bounds()
	conds := []string{"acknowledged_at >= ?", "acknowledged_at < ?"}
	args := []any{toMillis(w.From), toMillis(w.To)}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Success != nil {
		conds = append(conds, "success = ?")
		args = append(args, *f.Success)
	}
	return strings.Join(conds, " AND "), args
}

func toMillis(t time.Time) int64    { return t.UTC().UnixMilli() }
func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return domain.Float64(v.Float64)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
