package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/repo"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ repo.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", repo.ErrUnavailable, err)
	}
	return &Store{pool: pool, log: log}, nil
}

// Migrate applies the embedded goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("configure goose: %w", err)
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := goose.UpContext(runCtx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	s.log.Info("migrations_applied")
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// wrap tags connection-level failures with repo.ErrUnavailable; server-side
// errors (constraint violations, bad SQL) pass through as plain errors.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, repo.ErrUnavailable, err)
}

// ---- TargetStore ----

const targetCols = `id, name, url, type, interval_seconds, paused, status, last_probe_at, created_at`

func scanTarget(row pgx.Row) (*domain.Target, error) {
	var (
		t         domain.Target
		id        string
		status    string
		lastProbe *time.Time
	)
	if err := row.Scan(&id, &t.Name, &t.URL, &t.Type, &t.IntervalSeconds, &t.Paused, &status, &lastProbe, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.ID = domain.TargetID(id)
	t.Status = domain.Status(status)
	if lastProbe != nil {
		t.LastProbeAt = *lastProbe
	}
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
	_, err := s.pool.Exec(ctx,
		`INSERT INTO targets (id, name, url, type, interval_seconds, paused, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(t.ID), t.Name, t.URL, t.Type, t.IntervalSeconds, t.Paused, string(t.Status), t.CreatedAt,
	)
	return wrap("insert target", err)
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	t, err := scanTarget(s.pool.QueryRow(ctx, `SELECT `+targetCols+` FROM targets WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, wrap("get target", err)
	}
	return t, nil
}

func (s *Store) GetByURL(ctx context.Context, url string) (*domain.Target, error) {
	t, err := scanTarget(s.pool.QueryRow(ctx, `SELECT `+targetCols+` FROM targets WHERE url = $1`, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get target by url", err)
	}
	return t, nil
}

func (s *Store) List(ctx context.Context) ([]*domain.Target, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+targetCols+` FROM targets ORDER BY created_at, id`)
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

func (s *Store) Configure(ctx context.Context, t *domain.Target) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE targets SET name = $2, type = $3, interval_seconds = $4, paused = $5 WHERE id = $1`,
		string(t.ID), t.Name, t.Type, t.IntervalSeconds, t.Paused)
	if err != nil {
		return wrap("configure target", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) RecordProbe(ctx context.Context, id domain.TargetID, status domain.Status, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE targets SET status = $2, last_probe_at = $3 WHERE id = $1`,
		string(id), string(status), at)
	if err != nil {
		return wrap("record probe", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ---- EventStore ----

func (s *Store) Append(ctx context.Context, ev *domain.StatusEvent) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO status_events (target_id, status, latency_ms, occurred_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		string(ev.TargetID), string(ev.Status), ev.LatencyMS, ev.OccurredAt,
	).Scan(&ev.ID)
	return wrap("insert status event", err)
}

func (s *Store) QueryRange(ctx context.Context, id domain.TargetID, start, end time.Time) ([]domain.StatusEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, latency_ms, occurred_at
		   FROM status_events
		  WHERE target_id = $1 AND occurred_at >= $2 AND occurred_at <= $3
		  ORDER BY occurred_at, id`, string(id), start, end)
	if err != nil {
		return nil, wrap("query events", err)
	}
	defer rows.Close()

	var out []domain.StatusEvent
	for rows.Next() {
		ev := domain.StatusEvent{TargetID: id}
		var status string
		if err := rows.Scan(&ev.ID, &status, &ev.LatencyMS, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Status = domain.Status(status)
		out = append(out, ev)
	}
	return out, wrap("query events", rows.Err())
}

func (s *Store) MostRecentBefore(ctx context.Context, id domain.TargetID, t time.Time) (*domain.StatusEvent, error) {
	ev := domain.StatusEvent{TargetID: id}
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, latency_ms, occurred_at
		   FROM status_events
		  WHERE target_id = $1 AND occurred_at < $2
		  ORDER BY occurred_at DESC, id DESC
		  LIMIT 1`, string(id), t).Scan(&ev.ID, &status, &ev.LatencyMS, &ev.OccurredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("most recent event", err)
	}
	ev.Status = domain.Status(status)
	return &ev, nil
}

// ---- IncidentStore ----

func (s *Store) FindOpenByTitle(ctx context.Context, title string) (*domain.Incident, error) {
	var (
		inc              domain.Incident
		status, severity string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, description, status, severity, created_at
		   FROM incidents
		  WHERE title = $1 AND status = $2
		  ORDER BY created_at DESC
		  LIMIT 1`, title, string(domain.IncidentInvestigating),
	).Scan(&inc.ID, &inc.Title, &inc.Description, &status, &severity, &inc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find open incident", err)
	}
	inc.Status = domain.IncidentStatus(status)
	inc.Severity = domain.Severity(severity)
	return &inc, nil
}

func (s *Store) Create(ctx context.Context, inc *domain.Incident) error {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO incidents (id, title, description, status, severity, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		inc.ID, inc.Title, inc.Description, string(inc.Status), string(inc.Severity), inc.CreatedAt)
	return wrap("insert incident", err)
}

func (s *Store) Resolve(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE incidents SET status = $2 WHERE id = $1`, id, string(domain.IncidentResolved))
	if err != nil {
		return wrap("resolve incident", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]domain.Incident, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, description, status, severity, created_at
		   FROM incidents
		  ORDER BY created_at DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, wrap("recent incidents", err)
	}
	defer rows.Close()

	var out []domain.Incident
	for rows.Next() {
		var (
			inc              domain.Incident
			status, severity string
		)
		if err := rows.Scan(&inc.ID, &inc.Title, &inc.Description, &status, &severity, &inc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		inc.Status = domain.IncidentStatus(status)
		inc.Severity = domain.Severity(severity)
		out = append(out, inc)
	}
	return out, wrap("recent incidents", rows.Err())
}
