package es

import (
	"context"

	"github.com/google/uuid"
)

// EventStore owns the write/read protocol for one aggregate kind:
// persist a batch of new events atomically, fetch an aggregate's full
// history, delete an aggregate's history.
//
// Implementations live in the adapter packages (postgres, mysql, sqlite)
// and in inmemory for tests and lightweight callers.
type EventStore[S, E any] interface {
	// ByAggregateID returns all events for the aggregate in ascending
	// sequence-number order. An aggregate with no history yields an
	// empty slice, not an error.
	ByAggregateID(ctx context.Context, aggregateID uuid.UUID) ([]StoreEvent[E], error)

	// Persist atomically writes the batch of new events, assigning
	// sequence numbers from state.NextSequenceNumber() upward.
	//
	// Either all events become durable together with every
	// transactional handler's effects, or none do. Returns ErrConflict
	// on a sequence-number race, a *HandlerError when a transactional
	// handler vetoes the write, and a *PostCommitError - alongside the
	// already-durable batch - when post-commit handlers or bus
	// publishers fail after commit.
	//
	// Persist does not advance state; the caller folds the returned
	// batch (the AggregateManager does this).
	Persist(ctx context.Context, state *AggregateState[S], events []E) ([]StoreEvent[E], error)

	// Delete removes all events for the aggregate. It is meant for
	// hard-delete erasure, not for normal command flow.
	Delete(ctx context.Context, aggregateID uuid.UUID) error
}
