package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/metrics"
)

// Dispatcher delivers messages in the background so callers never wait on
// a sink. Failures are logged and dropped; nothing is retried.
type Dispatcher struct {
	Sinks   Multi
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Timeout time.Duration // per sink

	wg sync.WaitGroup
}

func NewDispatcher(logger *zap.Logger, m *metrics.Metrics, sinks Multi) *Dispatcher {
	return &Dispatcher{Sinks: sinks, Logger: logger, Metrics: m, Timeout: 10 * time.Second}
}

// Dispatch returns immediately.
func (d *Dispatcher) Dispatch(msg Message) {
	if len(d.Sinks) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.Deliver(context.Background(), msg)
	}()
}

// Deliver sends to every sink and blocks until all are done. Each sink gets
// its own timeout.
func (d *Dispatcher) Deliver(ctx context.Context, msg Message) error {
	observed := make(Multi, 0, len(d.Sinks))
	for _, n := range d.Sinks {
		observed = append(observed, &observedSink{inner: n, d: d})
	}
	return observed.Send(ctx, msg)
}

// Wait blocks until background deliveries finish or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

type observedSink struct {
	inner Notifier
	d     *Dispatcher
}

func (o *observedSink) Send(ctx context.Context, msg Message) error {
	timeout := o.d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := sinkName(o.inner)
	err := o.inner.Send(cctx, msg)
	o.d.Metrics.Notified(name, err)
	if err != nil {
		o.d.Logger.Warn("notify_failed",
			zap.String("sink", name),
			zap.String("title", msg.Title),
			zap.Error(err),
		)
		return err
	}
	o.d.Logger.Debug("notify_sent", zap.String("sink", name), zap.String("title", msg.Title))
	return nil
}
