package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{1, "acknowledgments", `
		CREATE TABLE IF NOT EXISTS acknowledgments (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id          TEXT    NOT NULL,
			service_id      INTEGER NOT NULL,
			host_id         INTEGER NOT NULL,
			service_name    TEXT    NOT NULL DEFAULT '',
			host_name       TEXT    NOT NULL DEFAULT '',
			status          TEXT    NOT NULL,
			success         BOOLEAN NOT NULL,
			error_message   TEXT,
			response_time   REAL,
			acknowledged_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_acks_time ON acknowledgments (acknowledged_at DESC);
		CREATE INDEX IF NOT EXISTS idx_acks_run  ON acknowledgments (run_id);`},
	{2, "run_metrics", `
		CREATE TABLE IF NOT EXISTS run_metrics (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id            TEXT    NOT NULL,
			recorded_at       INTEGER NOT NULL,
			total_alerts      INTEGER NOT NULL,
			successful_acks   INTEGER NOT NULL,
			failed_acks       INTEGER NOT NULL,
			api_response_time REAL,
			execution_time    REAL    NOT NULL,
			aborted           BOOLEAN NOT NULL DEFAULT 0,
			error             TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_runs_time ON run_metrics (recorded_at DESC);`},
}

// Migrate applies every migration not yet recorded in _migrations.
func (s *Store) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			version     INTEGER PRIMARY KEY,
			description TEXT    NOT NULL,
			applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	for _, m := range migrations {
		var n int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM _migrations WHERE version = ?`, m.Version).Scan(&n); err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if n > 0 {
			continue
		}
		err := s.Tx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO _migrations (version, description) VALUES (?, ?)`, m.Version, m.Description)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		s.log.Info("sqlite_migration_applied", zap.Int("version", m.Version), zap.String("description", m.Description))
	}
	return nil
}
