// Package metrics exposes Prometheus collectors for the monitoring loop.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var probeBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

type Metrics struct {
	probes        *prometheus.CounterVec
	probeDuration prometheus.Histogram
	events        *prometheus.CounterVec
	incidents     prometheus.Counter
	notifications *prometheus.CounterVec
	ticksSkipped  prometheus.Counter
	inFlight      prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Collectors that are already
// registered are reused.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statuspulse",
			Name:      "probes_total",
			Help:      "Completed probes by result",
		}, []string{"result"}),
		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "statuspulse",
			Name:      "probe_duration_seconds",
			Help:      "Wall time of a probe including retries",
			Buckets:   probeBuckets,
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statuspulse",
			Name:      "status_events_total",
			Help:      "Status events appended by status",
		}, []string{"status"}),
		incidents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statuspulse",
			Name:      "incidents_created_total",
			Help:      "Incidents opened by the monitor",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statuspulse",
			Name:      "notifications_total",
			Help:      "Notification deliveries by sink and outcome",
		}, []string{"sink", "outcome"}),
		ticksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statuspulse",
			Subsystem: "scheduler",
			Name:      "ticks_skipped_total",
			Help:      "Scheduler ticks skipped because the target store failed",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "statuspulse",
			Subsystem: "scheduler",
			Name:      "in_flight_probes",
			Help:      "Probes currently running",
		}),
		gatherer: reg,
	}
	m.probes = register(reg, m.probes)
	m.probeDuration = register(reg, m.probeDuration)
	m.events = register(reg, m.events)
	m.incidents = register(reg, m.incidents)
	m.notifications = register(reg, m.notifications)
	m.ticksSkipped = register(reg, m.ticksSkipped)
	m.inFlight = register(reg, m.inFlight)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveProbe(up bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "down"
	if up {
		result = "up"
	}
	m.probes.WithLabelValues(result).Inc()
	m.probeDuration.Observe(d.Seconds())
}

func (m *Metrics) EventAppended(status string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(status).Inc()
}

func (m *Metrics) IncidentCreated() {
	if m == nil {
		return
	}
	m.incidents.Inc()
}

func (m *Metrics) Notified(sink string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.notifications.WithLabelValues(sink, outcome).Inc()
}

func (m *Metrics) TickSkipped() {
	if m == nil {
		return
	}
	m.ticksSkipped.Inc()
}

func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.inFlight.Add(delta)
}
