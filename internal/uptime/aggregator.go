// Package uptime derives availability from the sparse, change-only status
// event log. Events are only written on change, so the status between two
// consecutive events is constant and availability is the integral of a step
// function rather than a count of samples.
package uptime

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
	"github.com/hamed0406/statuspulse/internal/window"
)

type Aggregator struct {
	Events   repo.EventStore
	Location *time.Location
	Now      func() time.Time
}

func New(events repo.EventStore, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{Events: events, Location: loc, Now: time.Now}
}

func (a *Aggregator) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// Uptime returns the availability percentage of id over [start, end],
// rounded to two decimals. Degraded counts as down. A target with no
// history at all reports 100.
func (a *Aggregator) Uptime(ctx context.Context, id domain.TargetID, start, end time.Time) (float64, error) {
	w, err := window.New(start, end)
	if err != nil {
		return 0, err
	}
	evs, err := a.Events.QueryRange(ctx, id, w.Start, w.End)
	if err != nil {
		return 0, fmt.Errorf("query events: %w", err)
	}
	prev, err := a.Events.MostRecentBefore(ctx, id, w.Start)
	if err != nil {
		return 0, fmt.Errorf("prior event: %w", err)
	}
	if len(evs) == 0 {
		if prev != nil && prev.Status.Down() {
			return 0, nil
		}
		return 100, nil
	}
	initial := domain.StatusOperational
	if prev != nil {
		initial = prev.Status
	}
	return Integrate(initial, evs, w), nil
}

// Today is the uptime from local midnight until now.
func (a *Aggregator) Today(ctx context.Context, id domain.TargetID) (float64, error) {
	now := a.now()
	return a.Uptime(ctx, id, window.StartOfDay(now, a.Location), now)
}

// mark is one cursor position in the segment walk. The terminal mark closes
// the window and carries no status.
type mark struct {
	at       time.Time
	status   domain.Status
	terminal bool
}

// Integrate walks the events over w starting from the initial status and
// returns the share of time not spent down. Event times are clamped into w,
// so an event past the end never extends the window.
func Integrate(initial domain.Status, events []domain.StatusEvent, w window.Window) float64 {
	marks := make([]mark, 0, len(events)+1)
	for _, ev := range events {
		marks = append(marks, mark{at: w.Clamp(ev.OccurredAt), status: ev.Status})
	}
	marks = append(marks, mark{at: w.End, terminal: true})

	var total, down time.Duration
	cursor, inEffect := w.Start, initial
	for _, m := range marks {
		seg := m.at.Sub(cursor)
		if seg > 0 {
			total += seg
			if inEffect.Down() {
				down += seg
			}
			cursor = m.at
		}
		if !m.terminal {
			inEffect = m.status
		}
	}
	if total == 0 {
		return 100
	}
	return window.Round2(window.Percent(float64(total-down) / float64(total) * 100))
}
