package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/notify"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/repo"
	"github.com/hamed0406/statuspulse/internal/repo/memory"
)

// ---- shared helpers ----

type memAlerts struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (m *memAlerts) Dispatch(msg notify.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
}

func (m *memAlerts) titles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.msgs))
	for _, msg := range m.msgs {
		out = append(out, msg.Title)
	}
	return out
}

// scripted returns outcomes per target in order; the last one repeats.
type scripted struct {
	mu    sync.Mutex
	plan  map[domain.TargetID][]bool
	calls map[domain.TargetID]int
	gate  map[domain.TargetID]chan struct{}
}

func newScripted() *scripted {
	return &scripted{
		plan:  map[domain.TargetID][]bool{},
		calls: map[domain.TargetID]int{},
		gate:  map[domain.TargetID]chan struct{}{},
	}
}

func (s *scripted) Probe(ctx context.Context, t *domain.Target) probe.Outcome {
	s.mu.Lock()
	gate := s.gate[t.ID]
	plan := s.plan[t.ID]
	n := s.calls[t.ID]
	s.calls[t.ID]++
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	up := true
	if len(plan) > 0 {
		if n >= len(plan) {
			n = len(plan) - 1
		}
		up = plan[n]
	}
	return outcome(up)
}

func (s *scripted) count(id domain.TargetID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

func outcome(up bool) probe.Outcome {
	if up {
		ms := 12
		return probe.Outcome{Up: true, LatencyMS: &ms}
	}
	msg := "connection refused"
	return probe.Outcome{Up: false, Error: &msg}
}

// clock is a settable time source shared by scheduler and detector.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingEvents breaks Append to simulate a store outage.
type failingEvents struct {
	*memory.Store
}

func (f failingEvents) Append(context.Context, *domain.StatusEvent) error {
	return repo.ErrUnavailable
}

type brokenTargets struct {
	*memory.Store
}

func (brokenTargets) List(context.Context) ([]*domain.Target, error) {
	return nil, errors.Join(repo.ErrUnavailable, errors.New("dial tcp: refused"))
}

// hookedTargets runs a one-shot hook right after a Get or List read, to
// let another check finish between the read and what the caller does next.
type hookedTargets struct {
	*memory.Store
	afterGet  func()
	afterList func()
}

func (h *hookedTargets) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	t, err := h.Store.Get(ctx, id)
	if f := h.afterGet; f != nil {
		h.afterGet = nil
		f()
	}
	return t, err
}

func (h *hookedTargets) List(ctx context.Context) ([]*domain.Target, error) {
	ts, err := h.Store.List(ctx)
	if f := h.afterList; f != nil {
		h.afterList = nil
		f()
	}
	return ts, err
}
