package notify

import (
	"context"
	"sync"

	"go.uber.org/multierr"
)

// Colors used for Discord embeds and anywhere else a sink can render one.
const (
	ColorFailure  = 15158332
	ColorRecovery = 3066993
)

type Message struct {
	Title string
	Text  string
	Color int
}

type Notifier interface {
	Send(ctx context.Context, m Message) error
}

// Named sinks are reported by name in logs and metrics.
type Named interface {
	Name() string
}

func sinkName(n Notifier) string {
	if nn, ok := n.(Named); ok {
		return nn.Name()
	}
	return "unknown"
}

// Multi delivers to every sink concurrently. One sink's failure or latency
// never holds back the others; all errors are combined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, msg Message) error {
	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)
	for _, n := range m {
		if n == nil {
			continue
		}
		wg.Add(1)
		go func(n Notifier) {
			defer wg.Done()
			if err := n.Send(ctx, msg); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(n)
	}
	wg.Wait()
	return errs
}

// Sinks keeps only the configured notifiers; constructors return nil when
// their URL is empty.
func Sinks(slack *Slack, discord *Discord, webhook *Webhook) Multi {
	var m Multi
	if slack != nil {
		m = append(m, slack)
	}
	if discord != nil {
		m = append(m, discord)
	}
	if webhook != nil {
		m = append(m, webhook)
	}
	return m
}
