package uptime

import (
	"context"
	"testing"
	"time"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo/memory"
)

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	now := day0.Add(12 * time.Hour)

	var targets []*domain.Target
	for _, name := range []string{"a", "b", "c"} {
		tgt := &domain.Target{Name: name, URL: "https://" + name}
		_ = s.Add(ctx, tgt)
		targets = append(targets, tgt)
	}
	// b went down at 06:00 and still is
	_ = s.Append(ctx, &domain.StatusEvent{TargetID: targets[1].ID, Status: domain.StatusOperational, OccurredAt: day0})
	_ = s.Append(ctx, &domain.StatusEvent{TargetID: targets[1].ID, Status: domain.StatusOutage, OccurredAt: day0.Add(6 * time.Hour)})
	targets[1].Status = domain.StatusOutage
	_ = s.Create(ctx, &domain.Incident{Title: domain.OutageTitle(targets[1]), Status: domain.IncidentInvestigating})

	agg := New(s, time.UTC)
	agg.Now = fixedNow(now)
	sum, err := agg.Summarize(ctx, targets, s)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.TotalTargets != 3 || sum.ActiveIncidents != 1 || len(sum.RecentIncidents) != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.AvgUptime != 83.33 {
		t.Fatalf("want avg 83.33, got %v", sum.AvgUptime)
	}
	if sum.Unstable[0].Name != "b" || sum.Unstable[0].Uptime != 50 {
		t.Fatalf("want b first in unstable, got %+v", sum.Unstable[0])
	}
}
