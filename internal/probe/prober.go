package probe

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/hamed0406/statuspulse/internal/domain"
)

const DefaultTimeout = 5 * time.Second

// Outcome is the classified result of probing one target.
// LatencyMS is set only for successful probes; Error only for failed ones.
type Outcome struct {
	Up        bool    `json:"up"`
	LatencyMS *int    `json:"latency_ms"`
	Error     *string `json:"error"`
}

// Prober runs one bounded health check against a target. It never touches
// stored state.
type Prober struct {
	Checker  Checker
	Diagnose Checker // optional; explains failures
	Timeout  time.Duration
}

func NewProber(timeout time.Duration, attempts int, backoff time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		Checker: &RetryChecker{
			Inner:    NewHTTPChecker(timeout),
			Attempts: attempts,
			Backoff:  backoff,
		},
		Diagnose: NewDNSDiagnoser(),
		Timeout:  timeout,
	}
}

func (p *Prober) Probe(ctx context.Context, t *domain.Target) Outcome {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := p.Checker.Check(cctx, t.URL)
	if res.Success {
		ms := int(math.Round(res.LatencyMS))
		return Outcome{Up: true, LatencyMS: &ms}
	}

	msg := res.Message
	if msg == "" {
		msg = "check failed"
	}
	// diagnose only with budget left; a timed-out probe is reported as such
	if p.Diagnose != nil && cctx.Err() == nil {
		if d := p.Diagnose.Check(cctx, t.URL); !d.Success {
			msg = strings.TrimSpace(msg + " dns=" + d.Message)
		}
	}
	return Outcome{Up: false, Error: &msg}
}
