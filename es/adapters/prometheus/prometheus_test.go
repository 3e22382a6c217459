package prometheus_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	promadapter "github.com/eventlock/eventlock/es/adapters/prometheus"
)

func TestMetrics_CountersByAggregate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := promadapter.NewMetrics(reg)

	m.EventsPersisted("counter", 2)
	m.EventsPersisted("counter", 3)
	m.EventsPersisted("journal", 1)
	m.ConcurrencyConflict("counter")
	m.PostCommitFailure("journal")

	expected := `
		# HELP eventlock_events_persisted_total Total number of committed events
		# TYPE eventlock_events_persisted_total counter
		eventlock_events_persisted_total{aggregate="counter"} 5
		eventlock_events_persisted_total{aggregate="journal"} 1
		# HELP eventlock_concurrency_conflicts_total Total number of optimistic lock failures
		# TYPE eventlock_concurrency_conflicts_total counter
		eventlock_concurrency_conflicts_total{aggregate="counter"} 1
		# HELP eventlock_post_commit_failures_total Total number of persist calls with failed post-commit side effects
		# TYPE eventlock_post_commit_failures_total counter
		eventlock_post_commit_failures_total{aggregate="journal"} 1
	`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"eventlock_events_persisted_total",
		"eventlock_concurrency_conflicts_total",
		"eventlock_post_commit_failures_total",
	))
}

func TestMetrics_PersistDurationObserved(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := promadapter.NewMetrics(reg)

	m.PersistDuration("counter", 15*time.Millisecond)
	m.PersistDuration("counter", 40*time.Millisecond)

	count, err := testutil.GatherAndCount(reg, "eventlock_persist_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count) // one series for the "counter" label
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	promadapter.NewMetrics(reg)
	require.Panics(t, func() { promadapter.NewMetrics(reg) })
}
