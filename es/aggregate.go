package es

// Aggregate is the contract for user-supplied decision logic.
//
// An aggregate associates a stable name (used as the event log's table
// key), a state type S, a command type C and an event type E. Both
// operations are pure: they must be deterministic and free of side
// effects. All I/O happens outside the aggregate, in the EventStore and
// the AggregateManager.
type Aggregate[S, C, E any] interface {
	// Name returns the stable identifier of this aggregate kind.
	// It determines the event table name and must never change once
	// events have been persisted.
	Name() string

	// HandleCommand validates a command against the current state and
	// returns the events it gives rise to, or a domain error. It must
	// not mutate state and must not perform I/O.
	HandleCommand(state S, command C) ([]E, error)

	// ApplyEvent folds a single event into the state, returning the
	// next state. Replaying the full ordered history through ApplyEvent
	// from the zero state must always reconstruct the same state.
	ApplyEvent(state S, event E) S
}
