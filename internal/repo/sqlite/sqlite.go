// Package sqlite is a single-file store for small deployments. Timestamps
// are stored as UTC unix nanoseconds so ordering is numeric.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS targets (
  id               TEXT PRIMARY KEY,
  name             TEXT NOT NULL,
  url              TEXT NOT NULL UNIQUE,
  type             TEXT NOT NULL DEFAULT '',
  interval_seconds INTEGER NOT NULL DEFAULT 60,
  paused           INTEGER NOT NULL DEFAULT 0,
  status           TEXT NOT NULL DEFAULT 'operational',
  last_probe_at    INTEGER,
  created_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS status_events (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  target_id   TEXT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
  status      TEXT NOT NULL,
  latency_ms  INTEGER,
  occurred_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_status_events_target_time ON status_events(target_id, occurred_at);

CREATE TABLE IF NOT EXISTS incidents (
  id          TEXT PRIMARY KEY,
  title       TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  status      TEXT NOT NULL DEFAULT 'investigating',
  severity    TEXT NOT NULL DEFAULT 'minor',
  created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_incidents_title_status ON incidents(title, status);
`

// Open creates the file if needed and applies the schema.
func Open(path string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", repo.ErrUnavailable, err)
	}
	// one writer; rows are drained before the next statement
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %v", repo.ErrUnavailable, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		s.log.Warn("sqlite_close_error", zap.Error(err))
	}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %v", op, repo.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

// ---- TargetStore ----

const targetCols = `id, name, url, type, interval_seconds, paused, status, last_probe_at, created_at`

type scanner interface{ Scan(dest ...any) error }

func scanTarget(row scanner) (*domain.Target, error) {
	var (
		t         domain.Target
		id        string
		status    string
		lastProbe sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&id, &t.Name, &t.URL, &t.Type, &t.IntervalSeconds, &t.Paused, &status, &lastProbe, &createdAt); err != nil {
		return nil, err
	}
	t.ID = domain.TargetID(id)
	t.Status = domain.Status(status)
	if lastProbe.Valid {
		t.LastProbeAt = fromNanos(lastProbe.Int64)
	}
	t.CreatedAt = fromNanos(createdAt)
	return &t, nil
}

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = domain.StatusOperational
	}
	if t.IntervalSeconds <= 0 {
		t.IntervalSeconds = domain.DefaultIntervalSeconds
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO targets (id, name, url, type, interval_seconds, paused, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.ID), t.Name, t.URL, t.Type, t.IntervalSeconds, t.Paused, string(t.Status), nanos(t.CreatedAt))
	return wrap("insert target", err)
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	t, err := scanTarget(s.db.QueryRowContext(ctx, `SELECT `+targetCols+` FROM targets WHERE id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, wrap("get target", err)
	}
	return t, nil
}

func (s *Store) GetByURL(ctx context.Context, url string) (*domain.Target, error) {
	t, err := scanTarget(s.db.QueryRowContext(ctx, `SELECT `+targetCols+` FROM targets WHERE url = ?`, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get target by url", err)
	}
	return t, nil
}

func (s *Store) List(ctx context.Context) ([]*domain.Target, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+targetCols+` FROM targets ORDER BY created_at, id`)
	if err != nil {
		return nil, wrap("list targets", err)
	}
	defer rows.Close()

	var out []*domain.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, t)
	}
	return out, wrap("list targets", rows.Err())
}

func (s *Store) exec1(ctx context.Context, op, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return wrap(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) Configure(ctx context.Context, t *domain.Target) error {
	return s.exec1(ctx, "configure target",
		`UPDATE targets SET name = ?, type = ?, interval_seconds = ?, paused = ? WHERE id = ?`,
		t.Name, t.Type, t.IntervalSeconds, t.Paused, string(t.ID))
}

func (s *Store) RecordProbe(ctx context.Context, id domain.TargetID, status domain.Status, at time.Time) error {
	return s.exec1(ctx, "record probe",
		`UPDATE targets SET status = ?, last_probe_at = ? WHERE id = ?`,
		string(status), nanos(at), string(id))
}

// ---- EventStore ----

func (s *Store) Append(ctx context.Context, ev *domain.StatusEvent) error {
	var lat sql.NullInt64
	if ev.LatencyMS != nil {
		lat = sql.NullInt64{Int64: int64(*ev.LatencyMS), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO status_events (target_id, status, latency_ms, occurred_at) VALUES (?, ?, ?, ?)`,
		string(ev.TargetID), string(ev.Status), lat, nanos(ev.OccurredAt))
	if err != nil {
		return wrap("insert status event", err)
	}
	ev.ID, _ = res.LastInsertId()
	return nil
}

func scanEvent(row scanner, id domain.TargetID) (domain.StatusEvent, error) {
	var (
		ev     = domain.StatusEvent{TargetID: id}
		status string
		lat    sql.NullInt64
		at     int64
	)
	if err := row.Scan(&ev.ID, &status, &lat, &at); err != nil {
		return ev, err
	}
	ev.Status = domain.Status(status)
	if lat.Valid {
		v := int(lat.Int64)
		ev.LatencyMS = &v
	}
	ev.OccurredAt = fromNanos(at)
	return ev, nil
}

func (s *Store) QueryRange(ctx context.Context, id domain.TargetID, start, end time.Time) ([]domain.StatusEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, latency_ms, occurred_at
		   FROM status_events
		  WHERE target_id = ? AND occurred_at >= ? AND occurred_at <= ?
		  ORDER BY occurred_at, id`, string(id), nanos(start), nanos(end))
	if err != nil {
		return nil, wrap("query events", err)
	}
	defer rows.Close()

	var out []domain.StatusEvent
	for rows.Next() {
		ev, err := scanEvent(rows, id)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, wrap("query events", rows.Err())
}

func (s *Store) MostRecentBefore(ctx context.Context, id domain.TargetID, t time.Time) (*domain.StatusEvent, error) {
	ev, err := scanEvent(s.db.QueryRowContext(ctx,
		`SELECT id, status, latency_ms, occurred_at
		   FROM status_events
		  WHERE target_id = ? AND occurred_at < ?
		  ORDER BY occurred_at DESC, id DESC
		  LIMIT 1`, string(id), nanos(t)), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("most recent event", err)
	}
	return &ev, nil
}

// ---- IncidentStore ----

const incidentCols = `id, title, description, status, severity, created_at`

func scanIncident(row scanner) (domain.Incident, error) {
	var (
		inc              domain.Incident
		status, severity string
		createdAt        int64
	)
	if err := row.Scan(&inc.ID, &inc.Title, &inc.Description, &status, &severity, &createdAt); err != nil {
		return inc, err
	}
	inc.Status = domain.IncidentStatus(status)
	inc.Severity = domain.Severity(severity)
	inc.CreatedAt = fromNanos(createdAt)
	return inc, nil
}

func (s *Store) FindOpenByTitle(ctx context.Context, title string) (*domain.Incident, error) {
	inc, err := scanIncident(s.db.QueryRowContext(ctx,
		`SELECT `+incidentCols+` FROM incidents WHERE title = ? AND status = ? ORDER BY created_at DESC LIMIT 1`,
		title, string(domain.IncidentInvestigating)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find open incident", err)
	}
	return &inc, nil
}

func (s *Store) Create(ctx context.Context, inc *domain.Incident) error {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO incidents (`+incidentCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
		inc.ID, inc.Title, inc.Description, string(inc.Status), string(inc.Severity), nanos(inc.CreatedAt))
	return wrap("insert incident", err)
}

func (s *Store) Resolve(ctx context.Context, id string) error {
	return s.exec1(ctx, "resolve incident",
		`UPDATE incidents SET status = ? WHERE id = ?`, string(domain.IncidentResolved), id)
}

func (s *Store) Recent(ctx context.Context, limit int) ([]domain.Incident, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+incidentCols+` FROM incidents ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, wrap("recent incidents", err)
	}
	defer rows.Close()

	var out []domain.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, inc)
	}
	return out, wrap("recent incidents", rows.Err())
}
