package es

import "context"

// TransactionalEventHandler reacts to an event inside the write
// transaction, through the same transactional resource the event was
// inserted with. It exists to keep synchronous read models consistent
// with the log: it never observes a half-written batch, and returning an
// error vetoes persistence of the whole batch.
type TransactionalEventHandler[E any] interface {
	Handle(ctx context.Context, tx DBTX, event StoreEvent[E]) error
}

// EventHandler reacts to an event after the write transaction has
// committed. Its failure is reported to the caller but never rolls back
// the already-committed write. Policies - handlers that issue follow-up
// commands through an AggregateManager - are EventHandlers.
type EventHandler[E any] interface {
	Handle(ctx context.Context, event StoreEvent[E]) error
}

// EventBus publishes a batch of newly committed events to outside
// subscribers. Publish failures are caller-visible but do not affect the
// committed log.
type EventBus[E any] interface {
	Publish(ctx context.Context, events []StoreEvent[E]) error
}

// TransactionalEventHandlerFunc adapts a function to TransactionalEventHandler.
type TransactionalEventHandlerFunc[E any] func(ctx context.Context, tx DBTX, event StoreEvent[E]) error

// Handle implements TransactionalEventHandler.
func (f TransactionalEventHandlerFunc[E]) Handle(ctx context.Context, tx DBTX, event StoreEvent[E]) error {
	return f(ctx, tx, event)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc[E any] func(ctx context.Context, event StoreEvent[E]) error

// Handle implements EventHandler.
func (f EventHandlerFunc[E]) Handle(ctx context.Context, event StoreEvent[E]) error {
	return f(ctx, event)
}

// EventBusFunc adapts a function to EventBus.
type EventBusFunc[E any] func(ctx context.Context, events []StoreEvent[E]) error

// Publish implements EventBus.
func (f EventBusFunc[E]) Publish(ctx context.Context, events []StoreEvent[E]) error {
	return f(ctx, events)
}
