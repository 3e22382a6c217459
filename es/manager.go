package es

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// AggregateManager orchestrates one command: it loads state by replay,
// invokes the aggregate's pure command handler, delegates persistence to
// the EventStore and folds the newly persisted events back into state.
// It is the only place state and store are bridged and has no state of
// its own, so a single manager may serve any number of concurrent callers.
type AggregateManager[S, C, E any] struct {
	aggregate Aggregate[S, C, E]
	store     EventStore[S, E]
	logger    Logger
}

// ManagerOption configures an AggregateManager.
type ManagerOption[S, C, E any] func(*AggregateManager[S, C, E])

// WithManagerLogger sets a logger for the manager.
func WithManagerLogger[S, C, E any](logger Logger) ManagerOption[S, C, E] {
	return func(m *AggregateManager[S, C, E]) {
		m.logger = logger
	}
}

// NewAggregateManager creates a manager bridging the given aggregate and
// store. The store is shared, not owned: the same store instance may be
// handed to policies and other managers.
func NewAggregateManager[S, C, E any](
	aggregate Aggregate[S, C, E],
	store EventStore[S, E],
	opts ...ManagerOption[S, C, E],
) *AggregateManager[S, C, E] {
	m := &AggregateManager[S, C, E]{
		aggregate: aggregate,
		store:     store,
		logger:    NoOpLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load reconstructs the aggregate state by folding its full event
// history in ascending sequence order. An unknown ID yields a fresh
// state at sequence number 0, not an error.
func (m *AggregateManager[S, C, E]) Load(ctx context.Context, aggregateID uuid.UUID) (AggregateState[S], error) {
	events, err := m.store.ByAggregateID(ctx, aggregateID)
	if err != nil {
		return AggregateState[S]{}, err
	}

	state := AggregateStateWithID[S](aggregateID)
	for _, event := range events {
		state.fold(event.SequenceNumber, m.aggregate.ApplyEvent(state.inner, event.Payload))
	}
	return state, nil
}

// Handle runs one command against the given state.
//
// On a decision error no persistence occurs and the state is returned
// unchanged alongside the error. On success the resulting events are
// persisted and folded into the returned state, advancing its sequence
// number to match.
//
// A *PostCommitError is returned together with the folded state: the
// events are durable, only best-effort side effects failed. Every other
// error means the log is unchanged.
func (m *AggregateManager[S, C, E]) Handle(ctx context.Context, state AggregateState[S], command C) (AggregateState[S], error) {
	events, err := m.aggregate.HandleCommand(state.Inner(), command)
	if err != nil {
		return state, err
	}
	if len(events) == 0 {
		return state, nil
	}

	stored, err := m.store.Persist(ctx, &state, events)
	if err != nil {
		var postCommit *PostCommitError
		if !errors.As(err, &postCommit) {
			return state, err
		}
		m.logger.Error(ctx, "post-commit side effects failed",
			"aggregate", m.aggregate.Name(),
			"aggregate_id", state.ID().String(),
			"failures", len(postCommit.Errs))
	}

	for _, event := range stored {
		state.fold(event.SequenceNumber, m.aggregate.ApplyEvent(state.inner, event.Payload))
	}
	return state, err
}

// HandleByID loads the aggregate and runs one command against it.
func (m *AggregateManager[S, C, E]) HandleByID(ctx context.Context, aggregateID uuid.UUID, command C) (AggregateState[S], error) {
	state, err := m.Load(ctx, aggregateID)
	if err != nil {
		return AggregateState[S]{}, err
	}
	return m.Handle(ctx, state, command)
}

// Delete removes the aggregate's full event history.
func (m *AggregateManager[S, C, E]) Delete(ctx context.Context, aggregateID uuid.UUID) error {
	return m.store.Delete(ctx, aggregateID)
}
