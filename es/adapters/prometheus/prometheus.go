// Package prometheus provides a Prometheus implementation of the
// es.Metrics instrumentation interface.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eventlock/eventlock/es"
)

// Default histogram buckets for persist latency (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

type metrics struct {
	persistDuration      *prometheus.HistogramVec
	eventsPersisted      *prometheus.CounterVec
	concurrencyConflicts *prometheus.CounterVec
	postCommitFailures   *prometheus.CounterVec
}

// NewMetrics creates a Prometheus implementation of es.Metrics and
// registers its collectors with reg.
func NewMetrics(reg prometheus.Registerer) es.Metrics {
	m := &metrics{
		persistDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventlock_persist_duration_seconds",
			Help:    "Event store persist latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"aggregate"}),

		eventsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventlock_events_persisted_total",
			Help: "Total number of committed events",
		}, []string{"aggregate"}),

		concurrencyConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventlock_concurrency_conflicts_total",
			Help: "Total number of optimistic lock failures",
		}, []string{"aggregate"}),

		postCommitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventlock_post_commit_failures_total",
			Help: "Total number of persist calls with failed post-commit side effects",
		}, []string{"aggregate"}),
	}

	reg.MustRegister(
		m.persistDuration,
		m.eventsPersisted,
		m.concurrencyConflicts,
		m.postCommitFailures,
	)
	return m
}

func (m *metrics) PersistDuration(aggregateName string, d time.Duration) {
	m.persistDuration.WithLabelValues(aggregateName).Observe(d.Seconds())
}

func (m *metrics) EventsPersisted(aggregateName string, count int) {
	m.eventsPersisted.WithLabelValues(aggregateName).Add(float64(count))
}

func (m *metrics) ConcurrencyConflict(aggregateName string) {
	m.concurrencyConflicts.WithLabelValues(aggregateName).Inc()
}

func (m *metrics) PostCommitFailure(aggregateName string) {
	m.postCommitFailures.WithLabelValues(aggregateName).Inc()
}
