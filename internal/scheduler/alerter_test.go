package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/alertack/internal/domain"
	"github.com/hamed0406/alertack/internal/reconcile"
)

type memNotifier struct {
	titles []string
	texts  []string
}

func (m *memNotifier) Send(ctx context.Context, title, text string) error {
	m.titles = append(m.titles, title)
	m.texts = append(m.texts, text)
	return nil
}

func aborted() reconcile.Summary {
	return reconcile.Summary{RunID: "r-abort", Aborted: true, AbortReason: "authentication failed: invalid credentials (HTTP 401)", Failed: 1}
}

func healthy() reconcile.Summary {
	return reconcile.Summary{RunID: "r-ok", Total: 2, Successful: 2}
}

func TestHealthy(t *testing.T) {
	cases := []struct {
		s    reconcile.Summary
		want bool
	}{
		{healthy(), true},
		{reconcile.Summary{}, true},
		{aborted(), false},
		{reconcile.Summary{Total: 3, Failed: 3}, false},
		{reconcile.Summary{Total: 3, Successful: 1, Failed: 2}, true},
	}
	for i, c := range cases {
		if got := Healthy(c.s); got != c.want {
			t.Errorf("case %d: Healthy = %v, want %v", i, got, c.want)
		}
	}
}

func TestAlerter_SendsOnFailure_RespectsCooldown(t *testing.T) {
	nt := &memNotifier{}
	al := NewAlerter(nt, AlerterConfig{AlertOnRecovery: true, Cooldown: time.Minute}, nil)
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	al.now = func() time.Time { return now }
	ctx := context.Background()

	al.Observe(ctx, aborted())
	if len(nt.titles) != 1 || !strings.Contains(nt.titles[0], "FAILING") {
		t.Fatalf("want one failing alert, got %v", nt.titles)
	}
	if !strings.Contains(nt.texts[0], "invalid credentials") {
		t.Fatalf("abort reason missing: %q", nt.texts[0])
	}

	// still failing: no repeat
	al.Observe(ctx, aborted())
	if len(nt.titles) != 1 {
		t.Fatalf("repeat suppressed, got %d", len(nt.titles))
	}

	// recovery bypasses cooldown
	now = now.Add(10 * time.Second)
	al.Observe(ctx, healthy())
	if len(nt.titles) != 2 || !strings.Contains(nt.titles[1], "RECOVERED") {
		t.Fatalf("want recovery alert, got %v", nt.titles)
	}

	// failing again inside the cooldown window: suppressed
	now = now.Add(10 * time.Second)
	al.Observe(ctx, aborted())
	if len(nt.titles) != 2 {
		t.Fatalf("cooldown should suppress, got %v", nt.titles)
	}
}

func TestAlerter_NoRecoveryIfDisabled(t *testing.T) {
	nt := &memNotifier{}
	al := NewAlerter(nt, AlerterConfig{AlertOnRecovery: false}, nil)
	ctx := context.Background()

	// first observation healthy: nothing to report
	al.Observe(ctx, healthy())
	if len(nt.titles) != 0 {
		t.Fatalf("unexpected alert: %v", nt.titles)
	}
	al.Observe(ctx, reconcile.Summary{RunID: "r2", Total: 1, Failed: 1,
		Errors: []domain.AlertError{{ServiceName: "CPU", HostName: "web01", Message: "acknowledgment timeout for service 1"}}})
	if len(nt.titles) != 1 || !strings.Contains(nt.texts[0], "CPU on web01") {
		t.Fatalf("want one failing alert with details, got %v %v", nt.titles, nt.texts)
	}
	al.Observe(ctx, healthy())
	if len(nt.titles) != 1 {
		t.Fatalf("recovery disabled, got %v", nt.titles)
	}
}

func TestAlerter_IgnoresCancelledRuns(t *testing.T) {
	nt := &memNotifier{}
	al := NewAlerter(nt, AlerterConfig{AlertOnRecovery: true}, nil)
	ctx := context.Background()

	al.Observe(ctx, healthy())
	al.Observe(ctx, reconcile.Summary{RunID: "r-stop", Total: 1, Successful: 1, Cancelled: true})
	al.Observe(ctx, reconcile.Summary{RunID: "r-stop2", Cancelled: true, AbortReason: "cancelled after 0 of 3 alerts"})
	if len(nt.titles) != 0 {
		t.Fatalf("shutdown must not be reported as a health change, got %v", nt.titles)
	}
}
