package probe

import (
	"context"
	"time"
)

type RetryChecker struct {
	Inner    Checker
	Attempts int
	Backoff  time.Duration
}

// Check retries Inner until it succeeds, attempts run out or ctx is done.
func (r *RetryChecker) Check(ctx context.Context, target string) CheckResult {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last CheckResult
	for i := 0; i < attempts; i++ {
		last = r.Inner.Check(ctx, target)
		if last.Success || i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			last.Message += " (retry aborted)"
			return last
		case <-time.After(r.Backoff):
		}
	}
	if !last.Success && attempts > 1 {
		// annotate message so you can see it was a retry series
		last.Message += " (after retries)"
	}
	return last
}
