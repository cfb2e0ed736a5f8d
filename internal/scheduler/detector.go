package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/metrics"
	"github.com/hamed0406/statuspulse/internal/notify"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/repo"
)

// Alerter accepts notifications without blocking.
type Alerter interface {
	Dispatch(m notify.Message)
}

// Detector turns probe outcomes into status events, cached status,
// incidents and notifications. Calls for the same target must not overlap;
// the Scheduler guarantees that.
type Detector struct {
	Logger    *zap.Logger
	Targets   repo.TargetStore
	Events    repo.EventStore
	Incidents repo.IncidentStore
	Alerts    Alerter
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

func NewDetector(logger *zap.Logger, store repo.Store, alerts Alerter, m *metrics.Metrics) *Detector {
	return &Detector{
		Logger:    logger,
		Targets:   store,
		Events:    store,
		Incidents: store,
		Alerts:    alerts,
		Metrics:   m,
		Now:       time.Now,
	}
}

// Handle records the outcome of one probe of t. t is updated in place with
// the new status and probe time. Incidents are opened on outage but never
// resolved here; resolution is an operator action.
func (d *Detector) Handle(ctx context.Context, t *domain.Target, out probe.Outcome) error {
	now := d.Now().UTC()

	next := domain.StatusOutage
	if out.Up {
		next = domain.StatusOperational
	}
	prev := t.Status
	if prev == "" {
		prev = domain.StatusOperational
	}

	hasEvents, err := repo.HasEvents(ctx, d.Events, t.ID)
	if err != nil {
		return fmt.Errorf("check history: %w", err)
	}

	var alert *notify.Message
	if next != prev || !hasEvents {
		ev := &domain.StatusEvent{
			TargetID:   t.ID,
			Status:     next,
			LatencyMS:  out.LatencyMS,
			OccurredAt: now,
		}
		if err := d.Events.Append(ctx, ev); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		d.Metrics.EventAppended(string(next))
		d.Logger.Info("status_event_appended",
			zap.String("target_id", string(t.ID)),
			zap.String("from", string(prev)),
			zap.String("to", string(next)),
			zap.Bool("baseline", !hasEvents),
		)

		switch {
		case prev == domain.StatusOutage && next == domain.StatusOperational:
			alert = recoveryMessage(t, out, now)
		case next == domain.StatusOutage && prev != domain.StatusOutage:
			alert = failureMessage(t, out, now)
		}
	}

	if err := d.Targets.RecordProbe(ctx, t.ID, next, now); err != nil {
		return fmt.Errorf("record probe: %w", err)
	}
	t.Status = next
	t.LastProbeAt = now

	// best-effort; never holds up the commit above
	if alert != nil && d.Alerts != nil {
		d.Alerts.Dispatch(*alert)
	}

	if next == domain.StatusOutage {
		return d.ensureIncident(ctx, t, out, now)
	}
	return nil
}

func (d *Detector) ensureIncident(ctx context.Context, t *domain.Target, out probe.Outcome, now time.Time) error {
	title := domain.OutageTitle(t)
	open, err := d.Incidents.FindOpenByTitle(ctx, title)
	if err != nil {
		return fmt.Errorf("find open incident: %w", err)
	}
	if open != nil {
		return nil
	}
	inc := &domain.Incident{
		Title:       title,
		Description: fmt.Sprintf("Automatic alert: Service %s is unreachable. Error: %s", displayName(t), errText(out)),
		Status:      domain.IncidentInvestigating,
		Severity:    domain.SeverityCritical,
		CreatedAt:   now,
	}
	if err := d.Incidents.Create(ctx, inc); err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	d.Metrics.IncidentCreated()
	d.Logger.Info("incident_created",
		zap.String("target_id", string(t.ID)),
		zap.String("incident_id", inc.ID),
		zap.String("title", title),
	)
	return nil
}

func displayName(t *domain.Target) string {
	if t.Name != "" {
		return t.Name
	}
	return t.URL
}

func errText(out probe.Outcome) string {
	if out.Error == nil {
		return "n/a"
	}
	return *out.Error
}

func failureMessage(t *domain.Target, out probe.Outcome, now time.Time) *notify.Message {
	return &notify.Message{
		Title: "🔴 " + domain.OutageTitle(t),
		Text: fmt.Sprintf("URL: %s\nError: %s\nChecked: %s",
			t.URL, errText(out), now.Format(time.RFC3339)),
		Color: notify.ColorFailure,
	}
}

func recoveryMessage(t *domain.Target, out probe.Outcome, now time.Time) *notify.Message {
	latency := "n/a"
	if out.LatencyMS != nil {
		latency = fmt.Sprintf("%d ms", *out.LatencyMS)
	}
	return &notify.Message{
		Title: "🟢 Service Recovered: " + displayName(t),
		Text: fmt.Sprintf("URL: %s\nLatency: %s\nChecked: %s",
			t.URL, latency, now.Format(time.RFC3339)),
		Color: notify.ColorRecovery,
	}
}
