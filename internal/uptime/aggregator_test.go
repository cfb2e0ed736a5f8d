package uptime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo/memory"
	"github.com/hamed0406/statuspulse/internal/window"
)

var day0 = time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, id domain.TargetID, evs ...domain.StatusEvent) *memory.Store {
	t.Helper()
	s := memory.New()
	for i := range evs {
		evs[i].TargetID = id
		if err := s.Append(context.Background(), &evs[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return s
}

func ev(at time.Time, st domain.Status) domain.StatusEvent {
	return domain.StatusEvent{Status: st, OccurredAt: at}
}

func TestUptime_HalfHourOutageInTwelveHours(t *testing.T) {
	s := seed(t, "A",
		ev(day0, domain.StatusOperational),
		ev(day0.Add(6*time.Hour), domain.StatusOutage),
		ev(day0.Add(6*time.Hour+30*time.Minute), domain.StatusOperational),
	)
	agg := New(s, time.UTC)
	got, err := agg.Uptime(context.Background(), "A", day0, day0.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("Uptime: %v", err)
	}
	if got != 95.83 {
		t.Fatalf("want 95.83, got %v", got)
	}
}

func TestUptime_NoEventsInRangeUsesPriorStatus(t *testing.T) {
	w0, w1 := day0.Add(24*time.Hour), day0.Add(48*time.Hour)
	cases := []struct {
		name  string
		prior domain.Status
		want  float64
	}{
		{"prior operational", domain.StatusOperational, 100},
		{"prior outage", domain.StatusOutage, 0},
		{"prior degraded", domain.StatusDegraded, 0},
	}
	for _, c := range cases {
		s := seed(t, "A", ev(day0, c.prior))
		got, err := New(s, time.UTC).Uptime(context.Background(), "A", w0, w1)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s: want %v, got %v", c.name, c.want, got)
		}
	}
}

func TestUptime_ColdStartIsFull(t *testing.T) {
	got, err := New(memory.New(), time.UTC).Uptime(context.Background(), "A", day0, day0.Add(time.Hour))
	if err != nil || got != 100 {
		t.Fatalf("want 100, got %v err=%v", got, err)
	}
}

func TestUptime_PriorOutageCarriesIntoWindow(t *testing.T) {
	// down since yesterday, back up at 03:00 of a 12h window
	s := seed(t, "A",
		ev(day0.Add(-time.Hour), domain.StatusOutage),
		ev(day0.Add(3*time.Hour), domain.StatusOperational),
	)
	got, _ := New(s, time.UTC).Uptime(context.Background(), "A", day0, day0.Add(12*time.Hour))
	if got != 75 {
		t.Fatalf("want 75, got %v", got)
	}
}

func TestUptime_DegradedCountsAsDown(t *testing.T) {
	s := seed(t, "A",
		ev(day0, domain.StatusOperational),
		ev(day0.Add(time.Hour), domain.StatusDegraded),
		ev(day0.Add(2*time.Hour), domain.StatusOperational),
	)
	got, _ := New(s, time.UTC).Uptime(context.Background(), "A", day0, day0.Add(4*time.Hour))
	if got != 75 {
		t.Fatalf("want 75, got %v", got)
	}
}

func TestUptime_InvariantUnderEventsAfterWindow(t *testing.T) {
	s := seed(t, "A",
		ev(day0, domain.StatusOperational),
		ev(day0.Add(2*time.Hour), domain.StatusOutage),
	)
	agg := New(s, time.UTC)
	end := day0.Add(4 * time.Hour)
	before, _ := agg.Uptime(context.Background(), "A", day0, end)

	late := ev(end.Add(time.Minute), domain.StatusOperational)
	late.TargetID = "A"
	_ = s.Append(context.Background(), &late)

	after, _ := agg.Uptime(context.Background(), "A", day0, end)
	if before != after || before != 50 {
		t.Fatalf("want 50 both times, got before=%v after=%v", before, after)
	}
}

func TestUptime_RejectsInvertedWindow(t *testing.T) {
	_, err := New(memory.New(), time.UTC).Uptime(context.Background(), "A", day0, day0.Add(-time.Second))
	if !errors.Is(err, window.ErrInvalidWindow) {
		t.Fatalf("want ErrInvalidWindow, got %v", err)
	}
}

func TestUptime_EmptyWindowIsFull(t *testing.T) {
	s := seed(t, "A", ev(day0, domain.StatusOutage))
	got, err := New(s, time.UTC).Uptime(context.Background(), "A", day0, day0)
	if err != nil || got != 100 {
		t.Fatalf("want 100 for zero-length window with an event on the boundary, got %v err=%v", got, err)
	}
}

func TestIntegrate_ClampsLateEvents(t *testing.T) {
	w := window.Window{Start: day0, End: day0.Add(time.Hour)}
	evs := []domain.StatusEvent{
		ev(day0.Add(30*time.Minute), domain.StatusOutage),
		ev(day0.Add(5*time.Hour), domain.StatusOperational),
	}
	if got := Integrate(domain.StatusOperational, evs, w); got != 50 {
		t.Fatalf("want 50, got %v", got)
	}
}

func TestIntegrate_MatchesStepFunction(t *testing.T) {
	// 10 alternating segments of i minutes each; odd segments are down
	var evs []domain.StatusEvent
	cur := day0
	var up, total time.Duration
	for i := 1; i <= 10; i++ {
		st := domain.StatusOperational
		if i%2 == 1 {
			st = domain.StatusOutage
		}
		evs = append(evs, ev(cur, st))
		d := time.Duration(i) * time.Minute
		if st == domain.StatusOperational {
			up += d
		}
		total += d
		cur = cur.Add(d)
	}
	w := window.Window{Start: day0, End: cur}
	want := window.Round2(float64(up) / float64(total) * 100)
	if got := Integrate(domain.StatusOperational, evs, w); got != want {
		t.Fatalf("want %v, got %v", want, got)
	}
}
