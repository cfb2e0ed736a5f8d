package uptime

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
	"github.com/hamed0406/statuspulse/internal/window"
)

const (
	summaryListSize = 5
	summaryParallel = 8
)

type TargetUptime struct {
	*domain.Target
	Uptime float64 `json:"uptime"`
}

// Summary is the fleet overview.
type Summary struct {
	TotalTargets    int               `json:"total_targets"`
	AvgUptime       float64           `json:"avg_uptime"`
	ActiveIncidents int               `json:"active_incidents"`
	RecentIncidents []domain.Incident `json:"recent_incidents"`
	Unstable        []TargetUptime    `json:"unstable_targets"`
}

// WithToday pairs each target with its uptime since local midnight.
func (a *Aggregator) WithToday(ctx context.Context, targets []*domain.Target) ([]TargetUptime, error) {
	out := make([]TargetUptime, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryParallel)
	for i, t := range targets {
		g.Go(func() error {
			p, err := a.Today(gctx, t.ID)
			if err != nil {
				return err
			}
			out[i] = TargetUptime{Target: t, Uptime: p}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Summarize builds the fleet overview. Active incidents counts targets whose
// cached status is not operational.
func (a *Aggregator) Summarize(ctx context.Context, targets []*domain.Target, incidents repo.IncidentStore) (*Summary, error) {
	rows, err := a.WithToday(ctx, targets)
	if err != nil {
		return nil, err
	}
	recent, err := incidents.Recent(ctx, summaryListSize)
	if err != nil {
		return nil, err
	}

	s := &Summary{TotalTargets: len(rows), RecentIncidents: recent}
	var sum float64
	for _, r := range rows {
		sum += r.Uptime
		if r.Status != domain.StatusOperational {
			s.ActiveIncidents++
		}
	}
	if len(rows) > 0 {
		s.AvgUptime = window.Round2(sum / float64(len(rows)))
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Uptime < rows[j].Uptime })
	if len(rows) > summaryListSize {
		rows = rows[:summaryListSize]
	}
	s.Unstable = rows
	return s, nil
}
