// Package eventlock provides event sourcing capabilities for Go applications.
//
// This package serves as the main entry point for the eventlock library.
// For the core event sourcing functionality, see the es package and its subpackages:
//
//	es                     - Core types, the write protocol contract and the manager
//	es/inmemory            - In-memory store for tests and development
//	es/adapters/postgres   - PostgreSQL implementation
//	es/adapters/mysql      - MySQL implementation
//	es/adapters/sqlite     - SQLite implementation
//	es/adapters/prometheus - Metrics implementation
//	es/adapters/natsbus    - JetStream event bus
//	es/migrations          - Schema bootstrap and migration generation
//	es/zaplog              - zap-backed logger
//
// Quick Start:
//
//  1. Build a store (runs the idempotent schema setup once):
//     store, err := postgres.New[CounterState, CounterEvent](ctx, db, "counter")
//
//  2. Handle commands through a manager:
//     manager := es.NewAggregateManager[CounterState, CounterCommand, CounterEvent](Counter{}, store)
//     state, err := manager.HandleByID(ctx, id, Increment{})
//
// See the examples directory for complete working examples.
package eventlock

// Version returns the current version of the library.
func Version() string {
	return "0.1.0-dev"
}
