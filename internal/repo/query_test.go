package repo

import (
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/alertack/internal/domain"
)

func TestHistoryFilter_BoundsAreCalendarDays(t *testing.T) {
	start, _ := ParseDay("2025-03-01")
	end, _ := ParseDay("2025-03-02")
	f := HistoryFilter{StartDate: start, EndDate: end}

	w := f.Bounds()
	if !w.From.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from: %v", w.From)
	}
	if !w.To.Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("to must be start of the following day: %v", w.To)
	}

	last := &domain.AckOutcome{AcknowledgedAt: time.Date(2025, 3, 2, 23, 59, 59, 0, time.UTC)}
	next := &domain.AckOutcome{AcknowledgedAt: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)}
	if !f.Match(last) || f.Match(next) {
		t.Fatalf("end date must be inclusive by day and exclusive after")
	}
}

func TestHistoryFilter_StatusAndSuccess(t *testing.T) {
	d, _ := ParseDay("2025-03-01")
	no := false
	f := HistoryFilter{StartDate: d, EndDate: d, Status: domain.StatusCritical, Success: &no}
	at := d.Add(time.Hour)

	if f.Match(&domain.AckOutcome{AcknowledgedAt: at, Status: domain.StatusWarning}) {
		t.Fatalf("status filter ignored")
	}
	if f.Match(&domain.AckOutcome{AcknowledgedAt: at, Status: domain.StatusCritical, Success: true}) {
		t.Fatalf("success filter ignored")
	}
	if !f.Match(&domain.AckOutcome{AcknowledgedAt: at, Status: domain.StatusCritical}) {
		t.Fatalf("matching row rejected")
	}
}

func TestStats_Finish(t *testing.T) {
	s := Stats{Total: 3, Successful: 2}
	s.Finish()
	if s.Failed != 1 || s.SuccessRate != 66.67 {
		t.Fatalf("finish: %+v", s)
	}
	z := Stats{}
	z.Finish()
	if z.SuccessRate != 0 {
		t.Fatalf("zero total must give zero rate")
	}
}

func TestParseDay_Invalid(t *testing.T) {
	if _, err := ParseDay("03/01/2025"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewHistoryFilter(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	f, err := NewHistoryFilter("", "", "", "", now)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.StartDate.Format("2006-01-02") + ".." + f.EndDate.Format("2006-01-02"); got != "2025-03-04..2025-03-10" {
		t.Fatalf("default range %s", got)
	}
	if f.Success != nil || f.Status != "" {
		t.Fatalf("no filters expected: %+v", f)
	}

	f, err = NewHistoryFilter("2025-03-01", "2025-03-02", " warning ", "false", now)
	if err != nil {
		t.Fatal(err)
	}
	if f.Status != domain.StatusWarning || f.Success == nil || *f.Success {
		t.Fatalf("filters not applied: %+v", f)
	}

	// start alone keeps end at today
	f, err = NewHistoryFilter("2025-02-01", "", "", "", now)
	if err != nil || f.EndDate.Format("2006-01-02") != "2025-03-10" {
		t.Fatalf("end default: %+v %v", f, err)
	}
}

func TestNewHistoryFilter_Rejects(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	cases := []struct{ start, end, success, want string }{
		{"2025-03-11", "", "", "start date 2025-03-11 is after end date 2025-03-10"},
		{"2025-03-05", "2025-03-01", "", "start date 2025-03-05 is after end date 2025-03-01"},
		{"03/01/2025", "", "", "invalid date"},
		{"", "", "maybe", "invalid success"},
	}
	for _, c := range cases {
		_, err := NewHistoryFilter(c.start, c.end, "", c.success, now)
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Errorf("(%q,%q,%q): err = %v, want %q", c.start, c.end, c.success, err, c.want)
		}
	}
}
