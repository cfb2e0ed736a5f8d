package domain

import "time"

type TargetID string

// Status is the availability state of a target.
type Status string

const (
	StatusOperational Status = "operational"
	StatusDegraded    Status = "degraded"
	StatusOutage      Status = "outage"
)

// Down reports whether the status counts against availability.
// Degraded counts as down no matter how it was reached.
func (s Status) Down() bool {
	return s == StatusOutage || s == StatusDegraded
}

func (s Status) Valid() bool {
	switch s {
	case StatusOperational, StatusDegraded, StatusOutage:
		return true
	}
	return false
}

const DefaultIntervalSeconds = 60

type Target struct {
	ID              TargetID  `json:"id"`
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	Type            string    `json:"type,omitempty"`
	IntervalSeconds int       `json:"interval_seconds"`
	Paused          bool      `json:"paused"`
	Status          Status    `json:"status"`
	LastProbeAt     time.Time `json:"last_probe_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// Interval returns the probe interval, falling back to the default when unset.
func (t *Target) Interval() time.Duration {
	if t.IntervalSeconds <= 0 {
		return DefaultIntervalSeconds * time.Second
	}
	return time.Duration(t.IntervalSeconds) * time.Second
}

// Due reports whether the target should be probed at now.
func (t *Target) Due(now time.Time) bool {
	if t.Paused {
		return false
	}
	return now.Sub(t.LastProbeAt) >= t.Interval()
}

// StatusEvent is an immutable change-of-state record.
type StatusEvent struct {
	ID         int64     `json:"id"`
	TargetID   TargetID  `json:"target_id"`
	Status     Status    `json:"status"`
	LatencyMS  *int      `json:"latency_ms"` // nil when the probe failed
	OccurredAt time.Time `json:"occurred_at"`
}
