package probe

import "context"

// CheckResult is the unified result of a single check.
//
// Fields:
// - StatusCode: HTTP status code when available; 0 for transport/DNS errors.
// - Name: label of the checker that produced it ("HTTP", "DNS").
type CheckResult struct {
	Success    bool
	LatencyMS  float64
	Message    string
	StatusCode int
	Name       string
}

// Checker performs a single check for a given target URL.
type Checker interface {
	Check(ctx context.Context, target string) CheckResult
}
