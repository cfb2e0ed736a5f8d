package uptime

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/window"
)

const degradedFloor = 70.0

// Label classifies a day's uptime percentage.
func Label(p float64) domain.DayLabel {
	switch {
	case p >= 100:
		return domain.LabelOperational
	case p >= degradedFloor:
		return domain.LabelDegraded
	default:
		return domain.LabelOutage
	}
}

// DailyHistory returns one bucket per calendar day in [start, end], in the
// aggregator's location, stopping at today. The range is read once and the
// status in effect is carried from day to day.
func (a *Aggregator) DailyHistory(ctx context.Context, id domain.TargetID, start, end time.Time) ([]domain.DailyBucket, error) {
	if _, err := window.New(start, end); err != nil {
		return nil, err
	}
	now := a.now()
	if start.After(now) {
		return []domain.DailyBucket{}, nil
	}
	if end.After(now) {
		end = now
	}
	days := window.Days(start, end, a.Location)
	if len(days) == 0 {
		return []domain.DailyBucket{}, nil
	}

	first := days[0].Start
	readEnd := days[len(days)-1].Truncate(now).End
	prev, err := a.Events.MostRecentBefore(ctx, id, first)
	if err != nil {
		return nil, fmt.Errorf("prior event: %w", err)
	}
	evs, err := a.Events.QueryRange(ctx, id, first, readEnd)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	started := prev != nil
	inEffect := domain.StatusOperational
	if prev != nil {
		inEffect = prev.Status
	}

	out := make([]domain.DailyBucket, 0, len(days))
	i := 0
	for _, d := range days {
		j := i
		for j < len(evs) && evs[j].OccurredAt.Before(d.End) {
			j++
		}
		dayEvents := evs[i:j]
		i = j

		if !started && len(dayEvents) == 0 {
			out = append(out, domain.DailyBucket{Date: d.Start, Label: domain.LabelNoData})
			continue
		}
		started = true

		p := Integrate(inEffect, dayEvents, d.Truncate(now))
		if len(dayEvents) > 0 {
			inEffect = dayEvents[len(dayEvents)-1].Status
		}
		out = append(out, domain.DailyBucket{Date: d.Start, UptimePercent: &p, Label: Label(p)})
	}
	return out, nil
}
