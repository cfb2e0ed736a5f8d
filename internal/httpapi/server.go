package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/domain"
	apimw "github.com/hamed0406/statuspulse/internal/httpapi/middleware"
	"github.com/hamed0406/statuspulse/internal/metrics"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/repo"
	"github.com/hamed0406/statuspulse/internal/scheduler"
	"github.com/hamed0406/statuspulse/internal/uptime"
	"github.com/hamed0406/statuspulse/internal/window"
)

// Checker runs an immediate probe of one target.
type Checker interface {
	CheckNow(ctx context.Context, id domain.TargetID) (*domain.Target, probe.Outcome, error)
}

type Server struct {
	Logger  *zap.Logger
	Store   repo.Store
	Uptime  *uptime.Aggregator
	Checks  Checker // optional
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func NewServer(l *zap.Logger, store repo.Store, agg *uptime.Aggregator, checks Checker, m *metrics.Metrics) *Server {
	return &Server{Logger: l, Store: store, Uptime: agg, Checks: checks, Metrics: m, Now: time.Now}
}

// Router wires public read routes and admin write routes. Empty key sets
// disable auth; empty origins allow any origin.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(corsHandler(allowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(pubRPM, pubBurst))
		r.Use(apimw.RequireAny(keys))

		r.Get("/api/targets", s.handleListTargets)
		r.Get("/api/targets/{id}/uptime", s.handleUptime)
		r.Get("/api/targets/{id}/history", s.handleHistory)
		r.Get("/api/targets/{id}/events", s.handleEvents)
		r.Get("/api/analytics", s.handleAnalytics)
		r.Get("/api/incidents", s.handleIncidents)
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(admRPM, admBurst))
		r.Use(apimw.RequireAdmin(keys))

		r.Post("/api/targets", s.handleAddTarget)
		r.Post("/api/targets/{id}/check", s.handleCheckNow)
		r.Post("/api/incidents/{id}/resolve", s.handleResolveIncident)
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	})
}

func (s *Server) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, window.ErrInvalidWindow):
		code = http.StatusBadRequest
	case errors.Is(err, repo.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, scheduler.ErrInFlight), errors.Is(err, scheduler.ErrPaused):
		code = http.StatusConflict
	case errors.Is(err, repo.ErrUnavailable):
		code = http.StatusServiceUnavailable
	}
	if code >= http.StatusInternalServerError {
		s.Logger.Error("request_failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
