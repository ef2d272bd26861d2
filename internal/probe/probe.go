// Package probe diagnoses whether the monitoring API can be reached from
// this host: an HTTP round trip with retries and, when that fails, a DNS
// classification of the host name.
package probe

import "context"

// CheckResult is the outcome of one check.
type CheckResult struct {
	Success    bool
	LatencyMS  float64
	Message    string
	StatusCode int // 0 for transport errors
}

// Checker performs a single check of a target URL.
type Checker interface {
	Check(ctx context.Context, target string) CheckResult
}
