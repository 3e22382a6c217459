package es

import "time"

// Metrics defines the instrumentation hooks emitted by the stores.
// Implementations must be safe for concurrent use. The prometheus
// adapter provides an implementation; NopMetrics is the default.
type Metrics interface {
	// PersistDuration records the wall time of one persist call,
	// including transactional handler dispatch and commit.
	PersistDuration(aggregateName string, d time.Duration)

	// EventsPersisted counts committed events.
	EventsPersisted(aggregateName string, count int)

	// ConcurrencyConflict counts persist calls rejected by the
	// sequence-number uniqueness constraint.
	ConcurrencyConflict(aggregateName string)

	// PostCommitFailure counts post-commit handler and bus failures.
	PostCommitFailure(aggregateName string)
}

type nopMetrics struct{}

func (nopMetrics) PersistDuration(string, time.Duration) {}
func (nopMetrics) EventsPersisted(string, int)           {}
func (nopMetrics) ConcurrencyConflict(string)            {}
func (nopMetrics) PostCommitFailure(string)              {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
