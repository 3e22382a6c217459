// Package mysql provides a MySQL adapter for event sourcing.
//
// The connection must be opened with parseTime=true so TIMESTAMP columns
// scan into time.Time.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/eventlock/eventlock/es"
	"github.com/eventlock/eventlock/es/migrations"
)

// Store is a MySQL-backed event store for one aggregate kind.
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
	table         string
	runMigrations bool
	logger        es.Logger
	metrics       es.Metrics
	codec         es.Codec[E]
	transactional []es.TransactionalEventHandler[E]
	postCommit    []es.EventHandler[E]
	buses         []es.EventBus[E]
}

// WithTableName sets a custom event table name.
func WithTableName[E any](table string) Option[E] {
	return func(o *options[E]) { o.table = table }
}

// WithoutRunningMigrations skips the schema bootstrap during New.
func WithoutRunningMigrations[E any]() Option[E] {
	return func(o *options[E]) { o.runMigrations = false }
}

// WithLogger sets a logger for the store.
func WithLogger[E any](logger es.Logger) Option[E] {
	return func(o *options[E]) { o.logger = logger }
}

// WithMetrics sets a metrics implementation for the store.
func WithMetrics[E any](metrics es.Metrics) Option[E] {
	return func(o *options[E]) { o.metrics = metrics }
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

// New creates a MySQL event store for the named aggregate and, unless
// opted out, runs the idempotent schema bootstrap once.
func New[S, E any](ctx context.Context, db *sql.DB, aggregateName string, opts ...Option[E]) (*Store[S, E], error) {
	o := options[E]{
		table:         migrations.TableName(aggregateName),
		runMigrations: true,
		logger:        es.NoOpLogger{},
		metrics:       es.NopMetrics(),
		codec:         es.JSONCodec[E]{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.runMigrations {
		if err := migrations.Run(ctx, db, migrations.MySQL, o.table); err != nil {
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
		table:         o.table,
		codec:         o.codec,
		logger:        o.logger,
		metrics:       o.metrics,
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
		WHERE aggregate_id = ?
		ORDER BY sequence_number ASC
	`, s.table)

	rows, err := s.db.QueryContext(ctx, query, aggregateID.String())
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

// Persist implements es.EventStore.
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
	defer tx.Rollback()

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (id, aggregate_id, payload, occurred_at, sequence_number)
		VALUES (?, ?, ?, ?, ?)
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
			event.ID.String(),
			event.AggregateID.String(),
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
	query := fmt.Sprintf(`DELETE FROM %s WHERE aggregate_id = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, query, aggregateID.String()); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}

// IsUniqueViolation checks if an error is a MySQL unique constraint violation.
// This is exported for testing purposes.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062 // ER_DUP_ENTRY
	}

	// Fallback: check error message for common patterns
	return strings.Contains(err.Error(), "Duplicate entry")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent[E any](row rowScanner, codec es.Codec[E]) (es.StoreEvent[E], error) {
	var (
		event es.StoreEvent[E]
		id    string
		aggID string
		data  []byte
	)
	if err := row.Scan(&id, &aggID, &data, &event.OccurredAt, &event.SequenceNumber); err != nil {
		return event, fmt.Errorf("failed to scan event: %w", err)
	}

	var err error
	if event.ID, err = uuid.Parse(id); err != nil {
		return event, fmt.Errorf("failed to parse event id: %w", err)
	}
	if event.AggregateID, err = uuid.Parse(aggID); err != nil {
		return event, fmt.Errorf("failed to parse aggregate id: %w", err)
	}

	payload, err := codec.Unmarshal(data)
	if err != nil {
		return event, err
	}
	event.Payload = payload
	return event, nil
}

var _ es.EventStore[struct{}, struct{}] = (*Store[struct{}, struct{}])(nil)
