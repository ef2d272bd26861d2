package repo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hamed0406/alertack/internal/domain"
)

// HistoryLimit caps the rows returned by History.
const HistoryLimit = 100

// Window is the half-open interval [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// Last returns the window of length d ending at now.
func Last(d time.Duration, now time.Time) Window {
	return Window{From: now.Add(-d), To: now}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

type Stats struct {
	Total        int64   `json:"total_acks"`
	Successful   int64   `json:"successful_acks"`
	Failed       int64   `json:"failed_acks"`
	AvgLatencyMS float64 `json:"avg_response_time_ms"`
	SuccessRate  float64 `json:"success_rate"`
}

// Finish derives Failed and SuccessRate from Total and Successful.
func (s *Stats) Finish() {
	s.Failed = s.Total - s.Successful
	s.SuccessRate = 0
	if s.Total > 0 {
		s.SuccessRate = math.Round(float64(s.Successful)/float64(s.Total)*10000) / 100
	}
}

// HourBucket counts outcomes by UTC hour-of-day.
type HourBucket struct {
	Hour    int   `json:"hour"`
	Success int64 `json:"success"`
	Failure int64 `json:"failure"`
}

// EmptyBuckets returns 24 zero-filled buckets, index == hour.
func EmptyBuckets() [24]HourBucket {
	var b [24]HourBucket
	for i := range b {
		b[i].Hour = i
	}
	return b
}

// HistoryFilter selects outcomes by calendar day (UTC), inclusive on both
// ends, and optionally by status and success flag.
type HistoryFilter struct {
	StartDate time.Time
	EndDate   time.Time
	Status    domain.Status // empty means any
	Success   *bool         // nil means any
}

// Bounds converts the calendar-day range into [start 00:00, end+1 00:00).
func (f HistoryFilter) Bounds() Window {
	return Window{From: day(f.StartDate), To: day(f.EndDate).AddDate(0, 0, 1)}
}

// Match applies the filter to one row.
func (f HistoryFilter) Match(o *domain.AckOutcome) bool {
	if !f.Bounds().Contains(o.AcknowledgedAt) {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.Success != nil && o.Success != *f.Success {
		return false
	}
	return true
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses YYYY-MM-DD as a UTC calendar day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// DefaultHistoryDays is the range used when no start date is given.
const DefaultHistoryDays = 7

// NewHistoryFilter builds a filter from raw request values. An empty end
// means today (UTC) and an empty start means DefaultHistoryDays ending at
// end. status is case-insensitive; success must parse as a bool.
func NewHistoryFilter(start, end, status, success string, now time.Time) (HistoryFilter, error) {
	var f HistoryFilter
	f.EndDate = day(now)
	if end != "" {
		d, err := ParseDay(end)
		if err != nil {
			return f, err
		}
		f.EndDate = d
	}
	f.StartDate = f.EndDate.AddDate(0, 0, -(DefaultHistoryDays - 1))
	if start != "" {
		d, err := ParseDay(start)
		if err != nil {
			return f, err
		}
		f.StartDate = d
	}
	if f.StartDate.After(f.EndDate) {
		return f, fmt.Errorf("start date %s is after end date %s",
			f.StartDate.Format("2006-01-02"), f.EndDate.Format("2006-01-02"))
	}
	if v := strings.TrimSpace(status); v != "" {
		f.Status = domain.Status(strings.ToUpper(v))
	}
	if success != "" {
		b, err := strconv.ParseBool(success)
		if err != nil {
			return f, fmt.Errorf("invalid success %q (want true or false)", success)
		}
		f.Success = &b
	}
	return f, nil
}

// HistoryPage holds at most HistoryLimit rows plus counts over the whole
// filtered set.
type HistoryPage struct {
	Rows       []domain.AckOutcome `json:"rows"`
	Total      int64               `json:"total"`
	Successful int64               `json:"successful"`
	Failed     int64               `json:"failed"`
	Truncated  bool                `json:"truncated"`
}
