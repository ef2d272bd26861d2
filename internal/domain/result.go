package domain

import "time"

// AckOutcome is one acknowledgment attempt. Rows are append-only.
type AckOutcome struct {
	ID             int64     `json:"id"`
	RunID          string    `json:"run_id"`
	ServiceID      int64     `json:"service_id"`
	HostID         int64     `json:"host_id"`
	ServiceName    string    `json:"service_name"`
	HostName       string    `json:"host_name"`
	Status         Status    `json:"status"`
	Success        bool      `json:"success"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	LatencyMS      *float64  `json:"response_time_ms"` // nil when no request was made
	AcknowledgedAt time.Time `json:"acknowledged_at"`
}

// RunMetrics is the single aggregate sample written per reconciliation run.
type RunMetrics struct {
	ID             int64     `json:"id"`
	RunID          string    `json:"run_id"`
	RecordedAt     time.Time `json:"recorded_at"`
	TotalAlerts    int       `json:"total_alerts"`
	SuccessfulAcks int       `json:"successful_acks"`
	FailedAcks     int       `json:"failed_acks"`
	APILatencyMS   *float64  `json:"api_response_time_ms"`
	DurationMS     float64   `json:"execution_time_ms"`
	Aborted        bool      `json:"aborted"`
	Error          string    `json:"error,omitempty"`
}

// Float64 returns a pointer to v; handy for the optional latency fields.
func Float64(v float64) *float64 { return &v }

// AlertError is a per-alert failure reported in a run or dispatch summary.
type AlertError struct {
	ServiceID   int64  `json:"service_id"`
	HostID      int64  `json:"host_id"`
	ServiceName string `json:"service_name"`
	HostName    string `json:"host_name"`
	Message     string `json:"message"`
}

// ErrorFor builds an AlertError for a.
func ErrorFor(a Alert, msg string) AlertError {
	return AlertError{
		ServiceID:   a.ServiceID,
		HostID:      a.HostID,
		ServiceName: a.ServiceName,
		HostName:    a.HostName,
		Message:     msg,
	}
}
