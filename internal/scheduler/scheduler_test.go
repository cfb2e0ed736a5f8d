package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
	"github.com/hamed0406/statuspulse/internal/repo/memory"
)

type rig struct {
	store  *memory.Store
	checks *scripted
	alerts *memAlerts
	clock  *clock
	sched  *Scheduler
}

func newRig(t *testing.T, targets ...*domain.Target) *rig {
	t.Helper()
	r := &rig{
		store:  memory.New(),
		checks: newScripted(),
		alerts: &memAlerts{},
		clock:  &clock{now: time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)},
	}
	for _, tgt := range targets {
		if err := r.store.Add(context.Background(), tgt); err != nil {
			t.Fatal(err)
		}
	}
	det := NewDetector(zap.NewNop(), r.store, r.alerts, nil)
	det.Now = r.clock.Now
	r.sched = New(zap.NewNop(), r.store, r.checks, det, nil, 10*time.Second, 0)
	r.sched.Now = r.clock.Now
	return r
}

func (r *rig) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.sched.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func TestScheduler_PausedNeverProbed(t *testing.T) {
	paused := &domain.Target{Name: "p", URL: "https://p", IntervalSeconds: 1, Paused: true}
	r := newRig(t, paused)

	for i := 0; i < 5; i++ {
		if n := r.sched.RunOnce(context.Background()); n != 0 {
			t.Fatalf("paused target dispatched")
		}
		r.clock.Advance(time.Hour)
	}
	r.drain(t)
	if r.checks.count(paused.ID) != 0 {
		t.Fatalf("paused target probed")
	}
	if len(events(t, r.store, paused.ID)) != 0 {
		t.Fatalf("paused target produced events")
	}
}

func TestScheduler_DueOnlyAfterInterval(t *testing.T) {
	tgt := &domain.Target{Name: "a", URL: "https://a", IntervalSeconds: 60}
	r := newRig(t, tgt)

	if n := r.sched.RunOnce(context.Background()); n != 1 {
		t.Fatalf("never-probed target should be due, started %d", n)
	}
	r.drain(t)

	r.clock.Advance(30 * time.Second)
	if n := r.sched.RunOnce(context.Background()); n != 0 {
		t.Fatalf("probed before interval elapsed")
	}
	r.clock.Advance(30 * time.Second)
	if n := r.sched.RunOnce(context.Background()); n != 1 {
		t.Fatalf("not probed after interval")
	}
	r.drain(t)
	if r.checks.count(tgt.ID) != 2 {
		t.Fatalf("want 2 probes, got %d", r.checks.count(tgt.ID))
	}
}

func TestScheduler_SlowTargetDoesNotBlockOthers(t *testing.T) {
	slow := &domain.Target{Name: "slow", URL: "https://slow", IntervalSeconds: 1}
	fast := &domain.Target{Name: "fast", URL: "https://fast", IntervalSeconds: 1}
	r := newRig(t, slow, fast)
	gate := make(chan struct{})
	r.checks.gate[slow.ID] = gate
	r.checks.plan[fast.ID] = []bool{false}

	if n := r.sched.RunOnce(context.Background()); n != 2 {
		t.Fatalf("want 2 dispatched, got %d", n)
	}

	// fast completes while slow is still in flight
	deadline := time.Now().Add(time.Second)
	for len(events(t, r.store, fast.ID)) == 0 || r.sched.InFlight(fast.ID) {
		if time.Now().After(deadline) {
			t.Fatalf("fast target blocked by slow one")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !r.sched.InFlight(slow.ID) {
		t.Fatalf("slow target should still be in flight")
	}

	// next tick skips the in-flight target but probes the other again
	r.clock.Advance(time.Minute)
	if n := r.sched.RunOnce(context.Background()); n != 1 {
		t.Fatalf("want only fast re-dispatched, got %d", n)
	}
	if _, _, err := r.sched.CheckNow(context.Background(), slow.ID); !errors.Is(err, ErrInFlight) {
		t.Fatalf("want ErrInFlight, got %v", err)
	}

	close(gate)
	r.drain(t)
	if r.checks.count(slow.ID) != 1 {
		t.Fatalf("slow target probed concurrently: %d", r.checks.count(slow.ID))
	}

	for _, id := range []domain.TargetID{slow.ID, fast.ID} {
		for _, ev := range events(t, r.store, id) {
			if ev.TargetID != id {
				t.Fatalf("event for %s recorded under %s", ev.TargetID, id)
			}
		}
	}
	if evs := events(t, r.store, fast.ID); len(evs) != 1 || evs[0].Status != domain.StatusOutage {
		t.Fatalf("fast target events wrong: %+v", evs)
	}
	if evs := events(t, r.store, slow.ID); len(evs) != 1 || evs[0].Status != domain.StatusOperational {
		t.Fatalf("slow target events wrong: %+v", evs)
	}
}

func TestScheduler_OutageThenRecoveryAcrossTicks(t *testing.T) {
	tgt := &domain.Target{Name: "api", URL: "https://api", IntervalSeconds: 10}
	r := newRig(t, tgt)
	r.checks.plan[tgt.ID] = []bool{false, true, false}

	for i := 0; i < 3; i++ {
		r.sched.RunOnce(context.Background())
		r.drain(t)
		r.clock.Advance(10 * time.Second)
	}

	evs := events(t, r.store, tgt.ID)
	if len(evs) != 3 {
		t.Fatalf("want 3 events, got %d", len(evs))
	}
	incs, _ := r.store.Recent(context.Background(), 10)
	if len(incs) != 1 {
		t.Fatalf("want exactly one incident, got %d", len(incs))
	}
}

func TestScheduler_StoreOutageSkipsTick(t *testing.T) {
	r := newRig(t)
	r.sched.Targets = brokenTargets{r.store}
	if n := r.sched.RunOnce(context.Background()); n != 0 {
		t.Fatalf("dispatched despite store failure")
	}
}

func TestScheduler_CheckNow(t *testing.T) {
	tgt := &domain.Target{Name: "a", URL: "https://a"}
	r := newRig(t, tgt)
	r.checks.plan[tgt.ID] = []bool{false}

	got, out, err := r.sched.CheckNow(context.Background(), tgt.ID)
	if err != nil {
		t.Fatalf("CheckNow: %v", err)
	}
	if out.Up || got.Status != domain.StatusOutage {
		t.Fatalf("unexpected result: %+v %+v", got, out)
	}
	if r.sched.InFlight(tgt.ID) {
		t.Fatalf("target left in flight")
	}
	if _, _, err := r.sched.CheckNow(context.Background(), "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestScheduler_CheckNowRejectsPaused(t *testing.T) {
	tgt := &domain.Target{Name: "p", URL: "https://p", Paused: true}
	r := newRig(t, tgt)

	if _, _, err := r.sched.CheckNow(context.Background(), tgt.ID); !errors.Is(err, ErrPaused) {
		t.Fatalf("want ErrPaused, got %v", err)
	}
	if r.checks.count(tgt.ID) != 0 || len(events(t, r.store, tgt.ID)) != 0 {
		t.Fatalf("paused target was checked")
	}
	if r.sched.InFlight(tgt.ID) {
		t.Fatalf("target left in flight")
	}
}

// A tick fired after CheckNow has read the target must not run a second check
// that records the same transition again.
func TestScheduler_CheckNowUsesStateAfterConcurrentTick(t *testing.T) {
	tgt := &domain.Target{Name: "api", URL: "https://api", IntervalSeconds: 1}
	r := newRig(t, tgt)
	r.checks.plan[tgt.ID] = []bool{false}
	hooked := &hookedTargets{Store: r.store}
	r.sched.Targets = hooked
	hooked.afterGet = func() {
		r.sched.RunOnce(context.Background())
		r.drain(t)
	}

	if _, _, err := r.sched.CheckNow(context.Background(), tgt.ID); err != nil {
		t.Fatalf("CheckNow: %v", err)
	}
	r.drain(t)

	if evs := events(t, r.store, tgt.ID); len(evs) != 1 {
		t.Fatalf("want 1 outage event, got %d: %+v", len(evs), evs)
	}
	if titles := r.alerts.titles(); len(titles) != 1 {
		t.Fatalf("want one failure notification, got %v", titles)
	}
}

// A tick whose target list predates a finished CheckNow must re-read the
// target and skip it once it is no longer due.
func TestScheduler_TickRereadsListedTarget(t *testing.T) {
	tgt := &domain.Target{Name: "api", URL: "https://api", IntervalSeconds: 60}
	r := newRig(t, tgt)
	r.checks.plan[tgt.ID] = []bool{false}
	hooked := &hookedTargets{Store: r.store}
	r.sched.Targets = hooked
	hooked.afterList = func() {
		if _, _, err := r.sched.CheckNow(context.Background(), tgt.ID); err != nil {
			t.Errorf("CheckNow: %v", err)
		}
	}

	r.sched.RunOnce(context.Background())
	r.drain(t)

	if n := r.checks.count(tgt.ID); n != 1 {
		t.Fatalf("want a single check, got %d", n)
	}
	if evs := events(t, r.store, tgt.ID); len(evs) != 1 {
		t.Fatalf("want 1 outage event, got %d: %+v", len(evs), evs)
	}
	if titles := r.alerts.titles(); len(titles) != 1 {
		t.Fatalf("want one failure notification, got %v", titles)
	}
}

func TestScheduler_RunLoopProbesAndStops(t *testing.T) {
	tgt := &domain.Target{Name: "a", URL: "https://a", IntervalSeconds: 1}
	r := newRig(t, tgt)
	r.sched.Tick = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.sched.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for r.checks.count(tgt.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no probe from run loop")
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop on cancel")
	}
	r.drain(t)
}
