package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetrics_ExposesCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveProbe(true, 20*time.Millisecond)
	m.ObserveProbe(false, time.Second)
	m.EventAppended("outage")
	m.IncidentCreated()
	m.Notified("slack", errors.New("boom"))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		`statuspulse_probes_total{result="down"} 1`,
		`statuspulse_status_events_total{status="outage"} 1`,
		`statuspulse_incidents_created_total 1`,
		`statuspulse_notifications_total{outcome="error",sink="slack"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg)
	b := New(reg)
	a.IncidentCreated()
	b.IncidentCreated()

	rr := httptest.NewRecorder()
	b.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "statuspulse_incidents_created_total 2") {
		t.Fatalf("collectors not shared:\n%s", rr.Body.String())
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveProbe(true, time.Second)
	m.TickSkipped()
	m.InFlight(1)
}

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = mf
	}
	return out
}

func TestMetrics_GaugeAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.InFlight(1)
	m.InFlight(1)
	m.InFlight(-1)
	m.ObserveProbe(true, 30*time.Millisecond)
	m.ObserveProbe(true, 3*time.Second)
	m.TickSkipped()

	fams := gather(t, reg)

	inflight := fams["statuspulse_scheduler_in_flight_probes"]
	if inflight == nil || inflight.GetMetric()[0].GetGauge().GetValue() != 1 {
		t.Fatalf("in-flight gauge wrong: %v", inflight)
	}
	hist := fams["statuspulse_probe_duration_seconds"]
	if hist == nil || hist.GetType() != dto.MetricType_HISTOGRAM {
		t.Fatalf("probe duration histogram missing")
	}
	if got := hist.GetMetric()[0].GetHistogram().GetSampleCount(); got != 2 {
		t.Fatalf("want 2 samples, got %d", got)
	}
	skipped := fams["statuspulse_scheduler_ticks_skipped_total"]
	if skipped == nil || skipped.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("ticks skipped wrong: %v", skipped)
	}
}
