package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/statuspulse/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrUnavailable wraps connection-level store failures.
	ErrUnavailable = errors.New("store unavailable")
)

// Ports (interfaces): memory, postgres and sqlite adapters implement all of them.
type TargetStore interface {
	Add(ctx context.Context, t *domain.Target) error
	Get(ctx context.Context, id domain.TargetID) (*domain.Target, error)
	// GetByURL returns nil, nil when no target has the URL.
	GetByURL(ctx context.Context, url string) (*domain.Target, error)
	List(ctx context.Context) ([]*domain.Target, error)
	// Configure updates name, type, interval and paused. Status and last probe are untouched.
	Configure(ctx context.Context, t *domain.Target) error
	// RecordProbe updates the cached status and last-probe time.
	RecordProbe(ctx context.Context, id domain.TargetID, status domain.Status, at time.Time) error
}

// EventStore is the append-only, time-ordered status event log.
type EventStore interface {
	Append(ctx context.Context, ev *domain.StatusEvent) error
	// QueryRange returns events with OccurredAt in [start, end], ascending.
	QueryRange(ctx context.Context, id domain.TargetID, start, end time.Time) ([]domain.StatusEvent, error)
	// MostRecentBefore returns the latest event strictly before t, or nil.
	MostRecentBefore(ctx context.Context, id domain.TargetID, t time.Time) (*domain.StatusEvent, error)
}

type IncidentStore interface {
	// FindOpenByTitle returns the investigating incident with title, or nil.
	FindOpenByTitle(ctx context.Context, title string) (*domain.Incident, error)
	Create(ctx context.Context, inc *domain.Incident) error
	// Resolve is the operator's out-of-band resolution; the monitor never calls it.
	Resolve(ctx context.Context, id string) error
	Recent(ctx context.Context, limit int) ([]domain.Incident, error)
}

// Store bundles every port; cmd/api picks one adapter for all of them.
type Store interface {
	TargetStore
	EventStore
	IncidentStore
	Close()
}

// HasEvents reports whether any event exists for id.
func HasEvents(ctx context.Context, es EventStore, id domain.TargetID) (bool, error) {
	ev, err := es.MostRecentBefore(ctx, id, farFuture)
	if err != nil {
		return false, err
	}
	return ev != nil, nil
}

// within UnixNano range so the sqlite adapter can encode it
var farFuture = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
