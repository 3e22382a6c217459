// Package postgres provides a PostgreSQL adapter for event sourcing.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/eventlock/eventlock/es"
	"github.com/eventlock/eventlock/es/migrations"
)

// StoreConfig contains configuration for the Postgres event store.
// Configuration is immutable after construction.
type StoreConfig struct {
	// TableName is the event table name. Defaults to "<aggregate>_events".
	TableName string

	// RunMigrations controls whether New runs the idempotent schema
	// bootstrap. Defaults to true; disable it when schema is managed
	// externally (see the migrations package and cmd/migrate-gen).
	RunMigrations bool

	// Logger is an optional logger for observability.
	Logger es.Logger

	// Metrics is an optional metrics implementation.
	Metrics es.Metrics
}

// Store is a PostgreSQL-backed event store for one aggregate kind.
// It owns the transactional write protocol; the connection pool is
// supplied and owned by the caller.
type Store[S, E any] struct {
	db            *sql.DB
	aggregateName string
	table         string
	codec         es.Codec[E]
	logger        es.Logger
	metrics       es.Metrics
	handlers      *es.HandlerSet[E]
}

// Option is a functional option for configuring a Store.
type Option[E any] func(*options[E])

type options[E any] struct {
	config        StoreConfig
	codec         es.Codec[E]
	transactional []es.TransactionalEventHandler[E]
	postCommit    []es.EventHandler[E]
	buses         []es.EventBus[E]
}

// WithTableName sets a custom event table name.
func WithTableName[E any](table string) Option[E] {
	return func(o *options[E]) { o.config.TableName = table }
}

// WithoutRunningMigrations skips the schema bootstrap during New.
// Use when schema is managed by external tooling.
func WithoutRunningMigrations[E any]() Option[E] {
	return func(o *options[E]) { o.config.RunMigrations = false }
}

// WithLogger sets a logger for the store.
func WithLogger[E any](logger es.Logger) Option[E] {
	return func(o *options[E]) { o.config.Logger = logger }
}

// WithMetrics sets a metrics implementation for the store.
func WithMetrics[E any](metrics es.Metrics) Option[E] {
	return func(o *options[E]) { o.config.Metrics = metrics }
}

// WithCodec sets a custom payload codec. Defaults to es.JSONCodec.
func WithCodec[E any](codec es.Codec[E]) Option[E] {
	return func(o *options[E]) { o.codec = codec }
}

// WithTransactionalEventHandlers sets the initial transactional handler list.
func WithTransactionalEventHandlers[E any](handlers ...es.TransactionalEventHandler[E]) Option[E] {
	return func(o *options[E]) { o.transactional = handlers }
}

// WithEventHandlers sets the initial post-commit handler list.
func WithEventHandlers[E any](handlers ...es.EventHandler[E]) Option[E] {
	return func(o *options[E]) { o.postCommit = handlers }
}

// WithEventBuses sets the initial event bus list.
func WithEventBuses[E any](buses ...es.EventBus[E]) Option[E] {
	return func(o *options[E]) { o.buses = buses }
}

// New creates a Postgres event store for the named aggregate and, unless
// opted out, runs the idempotent schema bootstrap once.
func New[S, E any](ctx context.Context, db *sql.DB, aggregateName string, opts ...Option[E]) (*Store[S, E], error) {
	o := options[E]{
		config: StoreConfig{
			TableName:     migrations.TableName(aggregateName),
			RunMigrations: true,
			Logger:        es.NoOpLogger{},
			Metrics:       es.NopMetrics(),
		},
		codec: es.JSONCodec[E]{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.config.RunMigrations {
		if err := migrations.Run(ctx, db, migrations.Postgres, o.config.TableName); err != nil {
			return nil, err
		}
	}

	handlers := es.NewHandlerSet[E]()
	handlers.SetTransactionalEventHandlers(o.transactional)
	handlers.SetEventHandlers(o.postCommit)
	handlers.SetEventBuses(o.buses)

	return &Store[S, E]{
		db:            db,
		aggregateName: aggregateName,
		table:         o.config.TableName,
		codec:         o.codec,
		logger:        o.config.Logger,
		metrics:       o.config.Metrics,
		handlers:      handlers,
	}, nil
}

// TableName returns the event table this store writes to.
func (s *Store[S, E]) TableName() string {
	return s.table
}

// SetTransactionalEventHandlers replaces the transactional handler list wholesale.
func (s *Store[S, E]) SetTransactionalEventHandlers(handlers ...es.TransactionalEventHandler[E]) {
	s.handlers.SetTransactionalEventHandlers(handlers)
}

// SetEventHandlers replaces the post-commit handler list wholesale.
// In-flight persist calls keep dispatching against the list they
// snapshotted at their start.
func (s *Store[S, E]) SetEventHandlers(handlers ...es.EventHandler[E]) {
	s.handlers.SetEventHandlers(handlers)
}

// SetEventBuses replaces the event bus list wholesale.
func (s *Store[S, E]) SetEventBuses(buses ...es.EventBus[E]) {
	s.handlers.SetEventBuses(buses)
}

// ByAggregateID implements es.EventStore.
func (s *Store[S, E]) ByAggregateID(ctx context.Context, aggregateID uuid.UUID) ([]es.StoreEvent[E], error) {
	query := fmt.Sprintf(`
		SELECT id, aggregate_id, payload, occurred_at, sequence_number
		FROM %s
		WHERE aggregate_id = $1
		ORDER BY sequence_number ASC
	`, s.table)

	rows, err := s.db.QueryContext(ctx, query, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []es.StoreEvent[E]
	for rows.Next() {
		event, err := scanEvent[E](rows, s.codec)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

// Persist implements es.EventStore. See es.EventStore for the protocol
// contract; the (aggregate_id, sequence_number) uniqueness constraint is
// the sole concurrency guard.
func (s *Store[S, E]) Persist(ctx context.Context, state *es.AggregateState[S], events []E) ([]es.StoreEvent[E], error) {
	if len(events) == 0 {
		return nil, es.ErrNoEvents
	}
	started := time.Now()
	snapshot := s.handlers.Snapshot()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op once Commit has succeeded; this guarantees
	// release on every exit path, including handler errors and
	// context cancellation.
	defer tx.Rollback()

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (id, aggregate_id, payload, occurred_at, sequence_number)
		VALUES ($1, $2, $3, $4, $5)
	`, s.table)

	next := state.NextSequenceNumber()
	stored := make([]es.StoreEvent[E], 0, len(events))
	for i, payload := range events {
		data, err := s.codec.Marshal(payload)
		if err != nil {
			return nil, err
		}

		event := es.StoreEvent[E]{
			ID:             uuid.New(),
			AggregateID:    state.ID(),
			Payload:        payload,
			OccurredAt:     time.Now().UTC(),
			SequenceNumber: next + int64(i),
		}

		if _, err := tx.ExecContext(ctx, insertQuery,
			event.ID,
			event.AggregateID,
			data,
			event.OccurredAt,
			event.SequenceNumber,
		); err != nil {
			if IsUniqueViolation(err) {
				s.metrics.ConcurrencyConflict(s.aggregateName)
				s.logger.Debug(ctx, "sequence number race detected",
					"aggregate", s.aggregateName,
					"aggregate_id", event.AggregateID.String(),
					"sequence_number", event.SequenceNumber)
				return nil, es.ErrConflict
			}
			return nil, fmt.Errorf("failed to insert event %d: %w", i, err)
		}
		stored = append(stored, event)
	}

	for _, event := range stored {
		for _, handler := range snapshot.Transactional {
			if err := handler.Handle(ctx, tx, event); err != nil {
				return nil, &es.HandlerError{Handler: fmt.Sprintf("%T", handler), Err: err}
			}
		}
	}

	// Commit is the durability and visibility point: the events and
	// every transactional handler's effects become visible together.
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
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
					"handler", fmt.Sprintf("%T", handler),
					"error", err)
				postCommitErrs = append(postCommitErrs, err)
			}
		}
	}
	for _, bus := range snapshot.Buses {
		if err := bus.Publish(ctx, stored); err != nil {
			s.logger.Error(ctx, "event bus publish failed",
				"aggregate", s.aggregateName,
				"bus", fmt.Sprintf("%T", bus),
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

// Delete implements es.EventStore.
func (s *Store[S, E]) Delete(ctx context.Context, aggregateID uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE aggregate_id = $1`, s.table)
	if _, err := s.db.ExecContext(ctx, query, aggregateID); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}

// IsUniqueViolation checks if an error is a PostgreSQL unique constraint violation.
// This is exported for testing purposes.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	// Check if it's a pq.Error with unique_violation code (23505)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}

	// Fallback: check error message for common patterns
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent[E any](row rowScanner, codec es.Codec[E]) (es.StoreEvent[E], error) {
	var (
		event es.StoreEvent[E]
		data  []byte
	)
	if err := row.Scan(
		&event.ID,
		&event.AggregateID,
		&data,
		&event.OccurredAt,
		&event.SequenceNumber,
	); err != nil {
		return event, fmt.Errorf("failed to scan event: %w", err)
	}

	payload, err := codec.Unmarshal(data)
	if err != nil {
		return event, err
	}
	event.Payload = payload
	return event, nil
}

var _ es.EventStore[struct{}, struct{}] = (*Store[struct{}, struct{}])(nil)
