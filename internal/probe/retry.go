package probe

import (
	"context"
	"time"
)

// RetryChecker repeats Inner until it succeeds, Attempts is exhausted or
// ctx is done.
type RetryChecker struct {
	Inner    Checker
	Attempts int
	Backoff  time.Duration
}

func (r *RetryChecker) Check(ctx context.Context, target string) CheckResult {
	attempts := max(r.Attempts, 1)
	var last CheckResult
	for i := 0; i < attempts; i++ {
		last = r.Inner.Check(ctx, target)
		if last.Success || i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			last.Message += " (cancelled)"
			return last
		case <-time.After(r.Backoff):
		}
	}
	if !last.Success && attempts > 1 {
		last.Message += " (after retries)"
	}
	return last
}
