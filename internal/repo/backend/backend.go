// Package backend picks an outcome store from a DATABASE_URL value.
package backend

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hamed0406/alertack/internal/repo"
	"github.com/hamed0406/alertack/internal/repo/memory"
	"github.com/hamed0406/alertack/internal/repo/postgres"
	"github.com/hamed0406/alertack/internal/repo/sqlite"
)

const DefaultURL = "sqlite://alertack.db"

type Kind string

const (
	KindMemory   Kind = "memory"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
)

// Parse splits url into a backend kind and its DSN.
//
//	memory               -> in-process store
//	sqlite://path        -> SQLite file (":memory:" allowed)
//	postgres://...       -> Postgres pool
func Parse(url string) (Kind, string, error) {
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		return Parse(DefaultURL)
	case url == "memory" || url == "memory://":
		return KindMemory, "", nil
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite url %q has no path", url)
		}
		return KindSQLite, path, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return KindPostgres, url, nil
	}
	return "", "", fmt.Errorf("unsupported DATABASE_URL %q (want memory, sqlite://path or postgres://...)", url)
}

// Open returns a ready store for url.
func Open(ctx context.Context, url string, log *zap.Logger) (repo.OutcomeStore, error) {
	kind, dsn, err := Parse(url)
	if err != nil {
		return nil, err
	}
	log.Info("store_open", zap.String("backend", string(kind)))
	switch kind {
	case KindMemory:
		return memory.New(), nil
	case KindSQLite:
		return sqlite.Open(ctx, dsn, log)
	default:
		return postgres.New(ctx, dsn, log)
	}
}
