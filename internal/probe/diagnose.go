package probe

import (
	"context"
	"net/url"
	"time"
)

// Report is the connectivity verdict for one API base URL.
type Report struct {
	URL  string
	HTTP CheckResult
	DNS  *DNSStatus // set only when the HTTP check failed
}

func (r Report) Reachable() bool { return r.HTTP.Success }

// Diagnoser checks an API base URL, falling back to DNS on failure.
type Diagnoser struct {
	Checker  Checker
	Resolver Resolver // nil uses the system resolver
}

// NewDiagnoser retries the HTTP check twice with a one second backoff.
func NewDiagnoser(timeout time.Duration, insecureTLS bool) *Diagnoser {
	return &Diagnoser{
		Checker: &RetryChecker{
			Inner:    NewHTTPChecker(timeout, insecureTLS),
			Attempts: 3,
			Backoff:  time.Second,
		},
	}
}

func (d *Diagnoser) Diagnose(ctx context.Context, baseURL string) Report {
	rep := Report{URL: baseURL, HTTP: d.Checker.Check(ctx, baseURL)}
	if rep.HTTP.Success {
		return rep
	}
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	dns := CheckDNS(ctx, d.Resolver, host)
	rep.DNS = &dns
	return rep
}
