package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/eventlock/eventlock/es"
)

// Administrative point operations on single event rows, addressed by
// event ID. These exist for operational correction and tooling; they are
// not part of the steady-state write path and bypass the reactive
// registries entirely.

// EventByID returns the event row with the given ID.
// Returns es.ErrEventNotFound if no such row exists.
func (s *Store[S, E]) EventByID(ctx context.Context, id uuid.UUID) (es.StoreEvent[E], error) {
	query := fmt.Sprintf(`
		SELECT id, aggregate_id, payload, occurred_at, sequence_number
		FROM %s
		WHERE id = $1
	`, s.table)

	event, err := scanEvent[E](s.db.QueryRowContext(ctx, query, id), s.codec)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event, es.ErrEventNotFound
		}
		return event, err
	}
	return event, nil
}

// UpdateEventPayload rewrites the payload of a single event row.
// Returns es.ErrEventNotFound if no such row exists.
func (s *Store[S, E]) UpdateEventPayload(ctx context.Context, id uuid.UUID, payload E) error {
	data, err := s.codec.Marshal(payload)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET payload = $2 WHERE id = $1`, s.table)
	result, err := s.db.ExecContext(ctx, query, id, data)
	if err != nil {
		return fmt.Errorf("failed to update event payload: %w", err)
	}
	return requireRow(result)
}

// DeleteEventByID removes a single event row.
// Returns es.ErrEventNotFound if no such row exists.
func (s *Store[S, E]) DeleteEventByID(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return es.ErrEventNotFound
	}
	return nil
}
