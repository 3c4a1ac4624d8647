// Package metrics exposes the broker's Prometheus collectors.
//
// A Metrics value is both a session.Observer and a
// broker.DecompositionObserver, so it is wired by passing it to the session
// manager and the broker.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goldenagents/gafed/internal/decompose"
	"github.com/goldenagents/gafed/internal/session"
)

// Metrics holds the collectors.
//
// Thread Safety: Safe for concurrent use (Prometheus metrics are thread-safe).
type Metrics struct {
	// OpenSessions is the number of sessions waiting for sources.
	OpenSessions prometheus.Gauge
	// Responses counts source messages by kind and outcome.
	Responses *prometheus.CounterVec
	// Decompositions counts decompositions by strategy and outcome. The
	// outcome is "ok" or the error code.
	Decompositions *prometheus.CounterVec
	// Finalized counts finalized sessions by completeness.
	Finalized *prometheus.CounterVec
	// ResultRows observes the number of rows per result.
	ResultRows prometheus.Histogram
}

// New creates the collectors in namespace and registers them with reg.
// A nil reg registers with the default registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		OpenSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "open",
			Help:      "Sessions waiting for sources",
		}),
		Responses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "responses_total",
			Help:      "Source messages by kind and outcome",
		}, []string{"kind", "outcome"}),
		Decompositions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "decompositions_total",
			Help:      "Query decompositions by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		Finalized: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "finalized_total",
			Help:      "Finalized sessions by completeness",
		}, []string{"complete"}),
		ResultRows: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "result_rows",
			Help:      "Rows per query result",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

// SessionOpened implements session.Observer.
func (m *Metrics) SessionOpened(string) {
	m.OpenSessions.Inc()
}

// MessageHandled implements session.Observer.
func (m *Metrics) MessageHandled(kind string, err error) {
	outcome := "applied"
	if err != nil {
		outcome = "rejected"
	}
	m.Responses.WithLabelValues(kind, outcome).Inc()
}

// SessionFinalized implements session.Observer.
func (m *Metrics) SessionFinalized(res *session.Result) {
	m.OpenSessions.Dec()
	m.Finalized.WithLabelValues(strconv.FormatBool(res.Complete)).Inc()
	m.ResultRows.Observe(float64(res.Len()))
}

// Decomposed implements broker.DecompositionObserver.
func (m *Metrics) Decomposed(strategy decompose.Strategy, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(decompose.CodeOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	m.Decompositions.WithLabelValues(string(strategy), outcome).Inc()
}
