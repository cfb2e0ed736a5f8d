package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/metrics"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/repo"
)

const DefaultTick = 10 * time.Second

var (
	// ErrInFlight is returned by CheckNow when the target is already being probed.
	ErrInFlight = errors.New("probe already in flight")
	// ErrPaused is returned by CheckNow for paused targets.
	ErrPaused = errors.New("target is paused")
)

type Prober interface {
	Probe(ctx context.Context, t *domain.Target) probe.Outcome
}

type Handler interface {
	Handle(ctx context.Context, t *domain.Target, out probe.Outcome) error
}

// Scheduler is a polling loop: every tick it re-reads all targets and starts
// a probe for each one that is due and not already in flight. A tick never
// waits for the probes it starts.
type Scheduler struct {
	Logger        *zap.Logger
	Targets       repo.TargetStore
	Prober        Prober
	Detector      Handler
	Metrics       *metrics.Metrics
	Tick          time.Duration
	MaxConcurrent int // 0 = unbounded
	Now           func() time.Time

	mu       sync.Mutex
	inFlight map[domain.TargetID]struct{}
	sem      chan struct{}
	wg       sync.WaitGroup
}

func New(
	logger *zap.Logger,
	ts repo.TargetStore,
	p Prober,
	d Handler,
	m *metrics.Metrics,
	tick time.Duration,
	maxConcurrent int,
) *Scheduler {
	if tick < 0 {
		tick = 0
	}
	s := &Scheduler{
		Logger:        logger,
		Targets:       ts,
		Prober:        p,
		Detector:      d,
		Metrics:       m,
		Tick:          tick,
		MaxConcurrent: maxConcurrent,
		Now:           time.Now,
		inFlight:      make(map[domain.TargetID]struct{}),
	}
	if maxConcurrent > 0 {
		s.sem = make(chan struct{}, maxConcurrent)
	}
	return s
}

// Run does an immediate pass, then one pass per tick, until ctx is cancelled.
// In-flight probes are detached from ctx so shutdown does not turn them into
// false outages; use Drain to wait for them.
func (s *Scheduler) Run(ctx context.Context) {
	if s.Tick == 0 {
		s.Logger.Info("scheduler_disabled")
		return
	}
	t := time.NewTicker(s.Tick)
	defer t.Stop()

	work := context.WithoutCancel(ctx)
	s.RunOnce(work)

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("scheduler_stopped")
			return
		case <-t.C:
			s.RunOnce(work)
		}
	}
}

// RunOnce evaluates every target once and returns how many probes it started.
// A store failure skips the tick; the next tick retries.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	ts, err := s.Targets.List(ctx)
	if err != nil {
		s.Metrics.TickSkipped()
		s.Logger.Warn("scheduler_tick_skipped", zap.Error(err))
		return 0
	}

	now := s.Now()
	started := 0
	for _, t := range ts {
		if !t.Due(now) || !s.acquire(t.ID) {
			continue
		}
		started++
		s.wg.Add(1)
		go func(id domain.TargetID) {
			defer s.wg.Done()
			defer s.release(id)
			// the listed copy may predate a check that finished before acquire
			cur, err := s.Targets.Get(ctx, id)
			if err != nil {
				s.Logger.Warn("target_reload_failed", zap.String("target_id", string(id)), zap.Error(err))
				return
			}
			if !cur.Due(s.Now()) {
				return
			}
			_, _ = s.probeAndHandle(ctx, cur)
		}(t.ID)
	}
	return started
}

// CheckNow probes one target immediately, respecting per-target exclusivity.
// Paused targets are rejected with ErrPaused.
func (s *Scheduler) CheckNow(ctx context.Context, id domain.TargetID) (*domain.Target, probe.Outcome, error) {
	if !s.acquire(id) {
		return nil, probe.Outcome{}, ErrInFlight
	}
	defer s.release(id)

	t, err := s.Targets.Get(ctx, id)
	if err != nil {
		return nil, probe.Outcome{}, err
	}
	if t.Paused {
		return nil, probe.Outcome{}, ErrPaused
	}
	s.wg.Add(1)
	defer s.wg.Done()
	out, err := s.probeAndHandle(context.WithoutCancel(ctx), t)
	return t, out, err
}

// Drain waits for in-flight probes until ctx ends.
func (s *Scheduler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain: %w", ctx.Err())
	}
}

// InFlight reports whether id is currently being probed.
func (s *Scheduler) InFlight(id domain.TargetID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[id]
	return ok
}

func (s *Scheduler) acquire(id domain.TargetID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	s.Metrics.InFlight(1)
	return true
}

func (s *Scheduler) release(id domain.TargetID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
	s.Metrics.InFlight(-1)
}

func (s *Scheduler) probeAndHandle(ctx context.Context, t *domain.Target) (probe.Outcome, error) {
	if s.sem != nil {
		s.sem <- struct{}{}
		defer func() { <-s.sem }()
	}

	start := time.Now()
	out := s.Prober.Probe(ctx, t)
	s.Metrics.ObserveProbe(out.Up, time.Since(start))
	s.Logger.Debug("probe_done",
		zap.String("target_id", string(t.ID)),
		zap.String("url", t.URL),
		zap.Bool("up", out.Up),
		zap.Duration("took", time.Since(start)),
	)

	if err := s.Detector.Handle(ctx, t, out); err != nil {
		s.Logger.Warn("transition_failed",
			zap.String("target_id", string(t.ID)),
			zap.String("url", t.URL),
			zap.Error(err),
		)
		return out, err
	}
	return out, nil
}
