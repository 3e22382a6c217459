// Package es provides core event sourcing infrastructure.
//
// # Overview
//
// This package defines the fundamental types and interfaces:
//   - Aggregate: user-supplied pure decision logic (decide + fold)
//   - AggregateState: identity, sequence position and folded state
//   - StoreEvent: a persisted event envelope
//   - EventStore: the atomic write/read protocol
//   - AggregateManager: command orchestration
//   - TransactionalEventHandler, EventHandler, EventBus: the three
//     classes of reactive collaborators
//
// # Design Philosophy
//
// Clean Architecture: core interfaces are database-agnostic.
// Infrastructure concerns are isolated in adapter packages
// (es/adapters/postgres, es/adapters/mysql, es/adapters/sqlite).
//
// Optimistic concurrency: no advisory locks, no read-then-check races.
// The (aggregate_id, sequence_number) uniqueness constraint is the sole
// arbiter between concurrent writers; a loser observes ErrConflict and
// must reload and retry its decision.
//
// Reactive dispatch: transactional handlers run inside the write
// transaction and can veto it, keeping synchronous read models atomic
// with the log. Post-commit handlers and bus publishers run only once
// durability is guaranteed; their failures are reported, never rolled
// back. This asymmetry is the central error-handling invariant.
//
// # Quick Start
//
// 1. Define an aggregate:
//
//	type Counter struct{}
//
//	func (Counter) Name() string { return "counter" }
//
//	func (Counter) HandleCommand(state int64, cmd CounterCommand) ([]CounterEvent, error) {
//	    ...
//	}
//
//	func (Counter) ApplyEvent(state int64, event CounterEvent) int64 {
//	    ...
//	}
//
// 2. Build a store (runs the idempotent schema setup once):
//
//	store, err := postgres.New[int64, CounterEvent](ctx, db, "counter",
//	    postgres.WithEventHandlers[CounterEvent](mailer),
//	    postgres.WithTransactionalEventHandlers[CounterEvent](readModel),
//	)
//
// 3. Handle commands through a manager:
//
//	manager := es.NewAggregateManager[int64, CounterCommand, CounterEvent](Counter{}, store)
//	state, err := manager.Load(ctx, id)
//	state, err = manager.Handle(ctx, state, Increment{})
//
// See the examples directory for complete working examples.
package es
