// Package inmemory provides an in-memory event store for tests and
// lightweight development use.
//
// It implements the full persist protocol - sequence assignment,
// constraint-style conflict detection, transactional handler veto,
// post-commit dispatch - against process memory. Transactional handlers
// receive a nil DBTX: their veto still aborts the write, but rollback of
// their own side effects is only meaningful on the SQL adapters.
package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventlock/eventlock/es"
)

// Store is an in-memory event store for one aggregate kind.
type Store[S, E any] struct {
	aggregateName string
	logger        es.Logger
	metrics       es.Metrics
	handlers      *es.HandlerSet[E]

	mu   sync.Mutex
	logs map[uuid.UUID][]es.StoreEvent[E]
}

// Option configures a Store.
type Option[E any] func(*config[E])

type config[E any] struct {
	logger        es.Logger
	metrics       es.Metrics
	transactional []es.TransactionalEventHandler[E]
	postCommit    []es.EventHandler[E]
	buses         []es.EventBus[E]
}

// WithLogger sets a logger for the store.
func WithLogger[E any](logger es.Logger) Option[E] {
	return func(c *config[E]) { c.logger = logger }
}

// WithMetrics sets a metrics implementation for the store.
func WithMetrics[E any](metrics es.Metrics) Option[E] {
	return func(c *config[E]) { c.metrics = metrics }
}

// WithTransactionalEventHandlers sets the initial transactional handler list.
func WithTransactionalEventHandlers[E any](handlers ...es.TransactionalEventHandler[E]) Option[E] {
	return func(c *config[E]) { c.transactional = handlers }
}

// WithEventHandlers sets the initial post-commit handler list.
func WithEventHandlers[E any](handlers ...es.EventHandler[E]) Option[E] {
	return func(c *config[E]) { c.postCommit = handlers }
}

// WithEventBuses sets the initial event bus list.
func WithEventBuses[E any](buses ...es.EventBus[E]) Option[E] {
	return func(c *config[E]) { c.buses = buses }
}

// New creates an in-memory event store for the named aggregate.
func New[S, E any](aggregateName string, opts ...Option[E]) *Store[S, E] {
	cfg := config[E]{
		logger:  es.NoOpLogger{},
		metrics: es.NopMetrics(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	handlers := es.NewHandlerSet[E]()
	handlers.SetTransactionalEventHandlers(cfg.transactional)
	handlers.SetEventHandlers(cfg.postCommit)
	handlers.SetEventBuses(cfg.buses)

	return &Store[S, E]{
		aggregateName: aggregateName,
		logger:        cfg.logger,
		metrics:       cfg.metrics,
		handlers:      handlers,
		logs:          map[uuid.UUID][]es.StoreEvent[E]{},
	}
}

// SetTransactionalEventHandlers replaces the transactional handler list wholesale.
func (s *Store[S, E]) SetTransactionalEventHandlers(handlers ...es.TransactionalEventHandler[E]) {
	s.handlers.SetTransactionalEventHandlers(handlers)
}

// SetEventHandlers replaces the post-commit handler list wholesale.
func (s *Store[S, E]) SetEventHandlers(handlers ...es.EventHandler[E]) {
	s.handlers.SetEventHandlers(handlers)
}

// SetEventBuses replaces the event bus list wholesale.
func (s *Store[S, E]) SetEventBuses(buses ...es.EventBus[E]) {
	s.handlers.SetEventBuses(buses)
}

// ByAggregateID implements es.EventStore.
func (s *Store[S, E]) ByAggregateID(_ context.Context, aggregateID uuid.UUID) ([]es.StoreEvent[E], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.logs[aggregateID]), nil
}

// Persist implements es.EventStore.
func (s *Store[S, E]) Persist(ctx context.Context, state *es.AggregateState[S], events []E) ([]es.StoreEvent[E], error) {
	if len(events) == 0 {
		return nil, es.ErrNoEvents
	}
	started := time.Now()
	snapshot := s.handlers.Snapshot()

	stored, err := s.append(ctx, snapshot, state, events)
	if err != nil {
		return nil, err
	}
	s.metrics.PersistDuration(s.aggregateName, time.Since(started))
	s.metrics.EventsPersisted(s.aggregateName, len(stored))

	var postCommitErrs []error
	for _, event := range stored {
		for _, handler := range snapshot.PostCommit {
			if err := handler.Handle(ctx, event); err != nil {
				s.logger.Error(ctx, "post-commit handler failed",
					"aggregate", s.aggregateName,
					"aggregate_id", event.AggregateID.String(),
					"sequence_number", event.SequenceNumber,
					"error", err)
				postCommitErrs = append(postCommitErrs, err)
			}
		}
	}
	for _, bus := range snapshot.Buses {
		if err := bus.Publish(ctx, stored); err != nil {
			s.logger.Error(ctx, "event bus publish failed",
				"aggregate", s.aggregateName,
				"error", err)
			postCommitErrs = append(postCommitErrs, err)
		}
	}
	if len(postCommitErrs) > 0 {
		s.metrics.PostCommitFailure(s.aggregateName)
		return stored, &es.PostCommitError{Errs: postCommitErrs}
	}
	return stored, nil
}

// append holds the lock for the atomic part of the protocol: sequence
// assignment, conflict detection, transactional handler dispatch and the
// log update that stands in for commit.
func (s *Store[S, E]) append(ctx context.Context, snapshot es.HandlerSnapshot[E], state *es.AggregateState[S], events []E) ([]es.StoreEvent[E], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[state.ID()]
	next := state.NextSequenceNumber()
	if len(log) > 0 && log[len(log)-1].SequenceNumber >= next {
		s.metrics.ConcurrencyConflict(s.aggregateName)
		return nil, es.ErrConflict
	}

	stored := make([]es.StoreEvent[E], 0, len(events))
	for i, payload := range events {
		stored = append(stored, es.StoreEvent[E]{
			ID:             uuid.New(),
			AggregateID:    state.ID(),
			Payload:        payload,
			OccurredAt:     time.Now().UTC(),
			SequenceNumber: next + int64(i),
		})
	}

	for _, event := range stored {
		for _, handler := range snapshot.Transactional {
			if err := handler.Handle(ctx, nil, event); err != nil {
				return nil, &es.HandlerError{Handler: handlerName(handler), Err: err}
			}
		}
	}

	s.logs[state.ID()] = append(log, stored...)
	return stored, nil
}

// Delete implements es.EventStore.
func (s *Store[S, E]) Delete(_ context.Context, aggregateID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, aggregateID)
	return nil
}

func handlerName(h any) string { return fmt.Sprintf("%T", h) }

var _ es.EventStore[struct{}, struct{}] = (*Store[struct{}, struct{}])(nil)
