package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type funcSink struct {
	name string
	fn   func(ctx context.Context) error
}

func (f *funcSink) Name() string                              { return f.name }
func (f *funcSink) Send(ctx context.Context, _ Message) error { return f.fn(ctx) }

func TestMulti_OneFailureDoesNotBlockOthers(t *testing.T) {
	var delivered atomic.Int32
	m := Multi{
		&funcSink{name: "bad", fn: func(context.Context) error { return errors.New("boom") }},
		&funcSink{name: "good", fn: func(context.Context) error { delivered.Add(1); return nil }},
		&funcSink{name: "bad2", fn: func(context.Context) error { return errors.New("bang") }},
	}
	err := m.Send(context.Background(), Message{Title: "t"})
	if delivered.Load() != 1 {
		t.Fatalf("good sink not delivered")
	}
	if len(multierr.Errors(err)) != 2 {
		t.Fatalf("want 2 combined errors, got %v", err)
	}
}

func TestDispatcher_SlowSinkDoesNotDelayOthers(t *testing.T) {
	fast := make(chan struct{})
	d := NewDispatcher(zap.NewNop(), nil, Multi{
		&funcSink{name: "slow", fn: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
		&funcSink{name: "fast", fn: func(context.Context) error { close(fast); return nil }},
	})
	d.Timeout = 200 * time.Millisecond

	start := time.Now()
	d.Dispatch(Message{Title: "t"})
	if time.Since(start) > 50*time.Millisecond {
		t.Fatalf("Dispatch blocked the caller")
	}
	select {
	case <-fast:
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("fast sink waited on slow sink")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.Wait(ctx)
	if ctx.Err() != nil {
		t.Fatalf("slow sink not bounded by per-sink timeout")
	}
}

func TestDispatcher_NoSinksIsNoop(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), nil, nil)
	d.Dispatch(Message{Title: "t"})
	d.Wait(context.Background())
}
