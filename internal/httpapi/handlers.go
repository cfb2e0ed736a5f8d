package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/domain"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/window"
)

const maxIncidentList = 100

type addPayload struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Interval int    `json:"interval"` // seconds
	Paused   bool   `json:"paused"`
}

type addResponse struct {
	Target  *domain.Target `json:"target"`
	Summary *probe.Outcome `json:"summary,omitempty"`
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var p addPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || !isValidHTTPURL(p.URL) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad payload: need an http(s) url"})
		return
	}
	if p.Interval < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "interval must be >= 0"})
		return
	}
	u := normalizeHTTPURL(p.URL)

	existing, err := s.Store.GetByURL(r.Context(), u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "target already exists", "target": existing})
		return
	}

	t := &domain.Target{
		Name:            strings.TrimSpace(p.Name),
		URL:             u,
		Type:            p.Type,
		IntervalSeconds: p.Interval,
		Paused:          p.Paused,
		Status:          domain.StatusOperational,
		CreatedAt:       s.now().UTC(),
	}
	if t.IntervalSeconds == 0 {
		t.IntervalSeconds = domain.DefaultIntervalSeconds
	}
	if err := s.Store.Add(r.Context(), t); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info("added_target", zap.String("target_id", string(t.ID)), zap.String("url", u))

	resp := addResponse{Target: t}
	// one immediate probe for feedback; a busy or failing check does not fail the add
	if s.Checks != nil && !t.Paused {
		if cur, out, err := s.Checks.CheckNow(r.Context(), t.ID); err == nil {
			resp.Target, resp.Summary = cur, &out
		} else {
			s.Logger.Warn("initial_check_failed", zap.String("target_id", string(t.ID)), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows, err := s.Uptime.WithToday(r.Context(), ts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// target resolves {id}, writing 404 when it does not exist.
func (s *Server) target(w http.ResponseWriter, r *http.Request) (*domain.Target, bool) {
	t, err := s.Store.Get(r.Context(), domain.TargetID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return t, true
}

type uptimeResponse struct {
	TargetID domain.TargetID `json:"target_id"`
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Uptime   float64         `json:"uptime"`
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	loc := s.Uptime.Location
	now := s.now()
	start, end, err := parseRange(r.URL.Query(), loc, now, window.StartOfDay(now, loc))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.Uptime.Uptime(r.Context(), t.ID, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uptimeResponse{TargetID: t.ID, Start: start, End: end, Uptime: p})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	loc := s.Uptime.Location
	now := s.now()
	defStart := window.StartOfDay(now, loc).AddDate(0, 0, -(defaultLookback - 1))
	start, end, err := parseRange(r.URL.Query(), loc, now, defStart)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	buckets, err := s.Uptime.DailyHistory(r.Context(), t.ID, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	t, ok := s.target(w, r)
	if !ok {
		return
	}
	now := s.now()
	start, end, err := parseRange(r.URL.Query(), s.Uptime.Location, now, now.AddDate(0, 0, -defaultLookback))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := window.New(start, end); err != nil {
		s.writeError(w, r, err)
		return
	}
	evs, err := s.Store.QueryRange(r.Context(), t.ID, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if evs == nil {
		evs = []domain.StatusEvent{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sum, err := s.Uptime.Summarize(r.Context(), ts, s.Store)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxIncidentList)
	}
	incs, err := s.Store.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if incs == nil {
		incs = []domain.Incident{}
	}
	writeJSON(w, http.StatusOK, incs)
}

func (s *Server) handleCheckNow(w http.ResponseWriter, r *http.Request) {
	if s.Checks == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "checks disabled"})
		return
	}
	t, out, err := s.Checks.CheckNow(r.Context(), domain.TargetID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, addResponse{Target: t, Summary: &out})
}

func (s *Server) handleResolveIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Store.Resolve(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info("incident_resolved", zap.String("incident_id", id))
	w.WriteHeader(http.StatusNoContent)
}
