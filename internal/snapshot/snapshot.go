// Package snapshot persists the alerts fetched by a run so the notifier can
// work from the same set without querying the backend again.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hamed0406/alertack/internal/centreon"
	"github.com/hamed0406/alertack/internal/domain"
)

type file struct {
	Timestamp  string            `json:"timestamp"`
	Count      *int              `json:"count,omitempty"`
	TotalCount *int              `json:"total_count,omitempty"`
	Alerts     []json.RawMessage `json:"alerts"`
}

// Write replaces path with {timestamp, count, alerts}. The alerts are the
// raw resources as the backend returned them. The file is written to a temp
// name first and renamed so readers never see a partial snapshot.
func Write(path string, alerts []domain.Alert, now time.Time) error {
	raws := make([]json.RawMessage, 0, len(alerts))
	for _, a := range alerts {
		raw := a.Raw
		if len(raw) == 0 {
			b, err := centreon.EncodeAlert(a)
			if err != nil {
				return fmt.Errorf("encode alert %s: %w", a.Key(), err)
			}
			raw = b
		}
		raws = append(raws, raw)
	}
	n := len(raws)
	body, err := json.MarshalIndent(file{
		Timestamp: now.UTC().Format(time.RFC3339),
		Count:     &n,
		Alerts:    raws,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("snapshot temp: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(append(body, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Snapshot is a decoded snapshot file.
type Snapshot struct {
	Timestamp time.Time
	Count     int
	Alerts    []domain.Alert
}

// Read loads a snapshot. Both "count" and the older "total_count" keys are
// accepted; when neither is present the alert count is used.
func Read(path string) (Snapshot, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var f file
	if err := json.Unmarshal(body, &f); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}

	s := Snapshot{Alerts: make([]domain.Alert, 0, len(f.Alerts))}
	if f.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, f.Timestamp); err == nil {
			s.Timestamp = ts
		}
	}
	for i, raw := range f.Alerts {
		a, err := centreon.DecodeAlert(raw)
		if err != nil {
			return Snapshot{}, fmt.Errorf("decode snapshot alert %d: %w", i, err)
		}
		s.Alerts = append(s.Alerts, a)
	}
	switch {
	case f.Count != nil:
		s.Count = *f.Count
	case f.TotalCount != nil:
		s.Count = *f.TotalCount
	default:
		s.Count = len(s.Alerts)
	}
	return s, nil
}
