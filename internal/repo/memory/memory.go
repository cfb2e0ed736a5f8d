package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
)

type Store struct {
	mu        sync.RWMutex
	targets   map[domain.TargetID]*domain.Target
	events    map[domain.TargetID][]domain.StatusEvent
	incidents []domain.Incident
	seq       int64
}

func New() *Store {
	return &Store{
		targets: make(map[domain.TargetID]*domain.Target),
		events:  make(map[domain.TargetID][]domain.StatusEvent),
	}
}

func (m *Store) Close() {}

// ---- TargetStore ----

func (m *Store) Add(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.targets {
		if cur.URL == t.URL {
			return fmt.Errorf("target %s already exists", t.URL)
		}
	}
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = domain.StatusOperational
	}
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Store) GetByURL(ctx context.Context, url string) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.targets {
		if t.URL == url {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

// List returns copies so callers never race with RecordProbe.
func (m *Store) List(ctx context.Context) ([]*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) Configure(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.targets[t.ID]
	if !ok {
		return repo.ErrNotFound
	}
	cur.Name = t.Name
	cur.Type = t.Type
	cur.IntervalSeconds = t.IntervalSeconds
	cur.Paused = t.Paused
	return nil
}

func (m *Store) RecordProbe(ctx context.Context, id domain.TargetID, status domain.Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.targets[id]
	if !ok {
		return repo.ErrNotFound
	}
	cur.Status = status
	cur.LastProbeAt = at
	return nil
}

// ---- EventStore ----

func (m *Store) Append(ctx context.Context, ev *domain.StatusEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	ev.ID = m.seq
	evs := append(m.events[ev.TargetID], *ev)
	// keep order even if a caller appends with an older timestamp
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].OccurredAt.Before(evs[j].OccurredAt) })
	m.events[ev.TargetID] = evs
	return nil
}

func (m *Store) QueryRange(ctx context.Context, id domain.TargetID, start, end time.Time) ([]domain.StatusEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.StatusEvent
	for _, ev := range m.events[id] {
		if ev.OccurredAt.Before(start) {
			continue
		}
		if ev.OccurredAt.After(end) {
			break
		}
		out = append(out, ev)
	}
	return out, nil
}

func (m *Store) MostRecentBefore(ctx context.Context, id domain.TargetID, t time.Time) (*domain.StatusEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	evs := m.events[id]
	i := sort.Search(len(evs), func(i int) bool { return !evs[i].OccurredAt.Before(t) })
	if i == 0 {
		return nil, nil
	}
	ev := evs[i-1]
	return &ev, nil
}

// ---- IncidentStore ----

func (m *Store) FindOpenByTitle(ctx context.Context, title string) (*domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.incidents {
		if m.incidents[i].Title == title && m.incidents[i].Status == domain.IncidentInvestigating {
			inc := m.incidents[i]
			return &inc, nil
		}
	}
	return nil, nil
}

func (m *Store) Create(ctx context.Context, inc *domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = time.Now().UTC()
	}
	m.incidents = append(m.incidents, *inc)
	return nil
}

func (m *Store) Resolve(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.incidents {
		if m.incidents[i].ID == id {
			m.incidents[i].Status = domain.IncidentResolved
			return nil
		}
	}
	return repo.ErrNotFound
}

func (m *Store) Recent(ctx context.Context, limit int) ([]domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Incident, len(m.incidents))
	copy(out, m.incidents)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ repo.Store = (*Store)(nil)
