// Package metrics exposes vote ledger counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "electionvote"

// Metrics records vote outcomes. It satisfies services.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	votesAccepted   *prometheus.CounterVec
	votesRejected   *prometheus.CounterVec
	counterDrift    *prometheus.CounterVec
	reconciled      *prometheus.CounterVec
	recomputeTime   prometheus.Histogram
	rateLimited     prometheus.Counter
	wsClients       prometheus.Gauge
	pollTransitions *prometheus.CounterVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Labels: kind (candidate, poll)
		votesAccepted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "votes",
			Name:      "accepted_total",
			Help:      "Votes written to the ledger",
		}, []string{"kind"}),

		// Labels: kind, reason (gate, validation, auth, duplicate_precheck, duplicate_constraint)
		votesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "votes",
			Name:      "rejected_total",
			Help:      "Votes refused before or at the ledger",
		}, []string{"kind", "reason"}),

		counterDrift: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tally",
			Name:      "counter_drift_total",
			Help:      "Counter updates that failed after a ledger write",
		}, []string{"kind"}),

		reconciled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tally",
			Name:      "reconciled_total",
			Help:      "Counters rewritten from the ledger",
		}, []string{"kind"}),

		recomputeTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tally",
			Name:      "recompute_duration_seconds",
			Help:      "Time to recompute statistics for one candidate group",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Vote requests refused by the rate limiter",
		}),

		wsClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "clients",
			Help:      "Connected websocket clients",
		}),

		// Labels: state (scheduled, open, closed)
		pollTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "polls",
			Name:      "state_transitions_total",
			Help:      "Poll state changes observed by the watcher",
		}, []string{"state"}),
	}
}

func (m *Metrics) VoteAccepted(kind string) {
	m.votesAccepted.WithLabelValues(kind).Inc()
}

func (m *Metrics) VoteRejected(kind, reason string) {
	m.votesRejected.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) CounterDrift(kind string) {
	m.counterDrift.WithLabelValues(kind).Inc()
}

func (m *Metrics) Reconciled(kind string) {
	m.reconciled.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveRecompute(d time.Duration) {
	m.recomputeTime.Observe(d.Seconds())
}

// RateLimited counts one request refused with 429
func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

// SetClients reports the current websocket client count
func (m *Metrics) SetClients(n int) {
	m.wsClients.Set(float64(n))
}

// PollTransition counts a poll entering state
func (m *Metrics) PollTransition(state string) {
	m.pollTransitions.WithLabelValues(state).Inc()
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
