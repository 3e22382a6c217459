// Package integration_test contains integration tests for the Postgres adapter.
// These tests require a running PostgreSQL instance.
//
// Run with: go test -tags=integration ./es/adapters/postgres/integration_test/...
//
//go:build integration

package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/eventlock/eventlock/es"
	"github.com/eventlock/eventlock/es/adapters/postgres"
	"github.com/eventlock/eventlock/es/migrations"
)

type counterEvent struct {
	Delta int64 `json:"delta"`
}

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Default to localhost, but allow override via env var for CI
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}

	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dbname := os.Getenv("POSTGRES_DB")
	if dbname == "" {
		dbname = "eventlock_test"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx))

	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStore(t *testing.T, db *sql.DB, opts ...postgres.Option[counterEvent]) *postgres.Store[int64, counterEvent] {
	t.Helper()

	ctx := context.Background()
	table := migrations.TableName("counter")
	_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table)
	require.NoError(t, err)

	store, err := postgres.New[int64, counterEvent](ctx, db, "counter", opts...)
	require.NoError(t, err)
	return store
}

func TestStore_PersistAndRead(t *testing.T) {
	db := getTestDB(t)
	store := newTestStore(t, db)
	ctx := context.Background()

	id := uuid.New()
	state := es.AggregateStateWithID[int64](id)

	stored, err := store.Persist(ctx, &state, []counterEvent{{Delta: 1}, {Delta: -1}})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.EqualValues(t, 1, stored[0].SequenceNumber)
	require.EqualValues(t, 2, stored[1].SequenceNumber)

	events, err := store.ByAggregateID(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.EqualValues(t, 1, events[0].Payload.Delta)
	require.EqualValues(t, -1, events[1].Payload.Delta)
	require.Equal(t, stored[0].ID, events[0].ID)
	require.WithinDuration(t, time.Now(), events[0].OccurredAt, time.Minute)
}

func TestStore_ConflictOnStaleState(t *testing.T) {
	db := getTestDB(t)
	store := newTestStore(t, db)
	ctx := context.Background()

	id := uuid.New()
	fresh := es.AggregateStateWithID[int64](id)
	stale := fresh

	_, err := store.Persist(ctx, &fresh, []counterEvent{{Delta: 1}})
	require.NoError(t, err)

	_, err = store.Persist(ctx, &stale, []counterEvent{{Delta: 1}})
	require.ErrorIs(t, err, es.ErrConflict)

	events, err := store.ByAggregateID(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestStore_TransactionalVetoRollsBackBatch(t *testing.T) {
	db := getTestDB(t)
	errVeto := errors.New("rejected")
	store := newTestStore(t, db,
		postgres.WithTransactionalEventHandlers[counterEvent](
			es.TransactionalEventHandlerFunc[counterEvent](func(_ context.Context, _ es.DBTX, event es.StoreEvent[counterEvent]) error {
				if event.Payload.Delta < 0 {
					return errVeto
				}
				return nil
			}),
		),
	)
	ctx := context.Background()

	id := uuid.New()
	state := es.AggregateStateWithID[int64](id)

	_, err := store.Persist(ctx, &state, []counterEvent{{Delta: 1}, {Delta: -1}})
	var handlerErr *es.HandlerError
	require.ErrorAs(t, err, &handlerErr)
	require.ErrorIs(t, err, errVeto)

	// Nothing from the batch is visible after rollback.
	events, err := store.ByAggregateID(ctx, id)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestStore_TransactionalHandlerWritesInSameTx(t *testing.T) {
	db := getTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		DROP TABLE IF EXISTS counter_totals;
		CREATE TABLE counter_totals (
			aggregate_id UUID PRIMARY KEY,
			total BIGINT NOT NULL
		)`)
	require.NoError(t, err)

	store := newTestStore(t, db,
		postgres.WithTransactionalEventHandlers[counterEvent](
			es.TransactionalEventHandlerFunc[counterEvent](func(ctx context.Context, tx es.DBTX, event es.StoreEvent[counterEvent]) error {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO counter_totals (aggregate_id, total) VALUES ($1, $2)
					ON CONFLICT (aggregate_id) DO UPDATE SET total = counter_totals.total + $2`,
					event.AggregateID, event.Payload.Delta)
				return err
			}),
		),
	)

	id := uuid.New()
	state := es.AggregateStateWithID[int64](id)
	_, err = store.Persist(ctx, &state, []counterEvent{{Delta: 2}, {Delta: 3}})
	require.NoError(t, err)

	var total int64
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT total FROM counter_totals WHERE aggregate_id = $1", id).Scan(&total))
	require.EqualValues(t, 5, total)
}

func TestStore_PostCommitFailureKeepsEvents(t *testing.T) {
	db := getTestDB(t)
	errMail := errors.New("gateway down")
	store := newTestStore(t, db,
		postgres.WithEventHandlers[counterEvent](
			es.EventHandlerFunc[counterEvent](func(context.Context, es.StoreEvent[counterEvent]) error {
				return errMail
			}),
		),
	)
	ctx := context.Background()

	id := uuid.New()
	state := es.AggregateStateWithID[int64](id)

	stored, err := store.Persist(ctx, &state, []counterEvent{{Delta: 1}})
	var postCommit *es.PostCommitError
	require.ErrorAs(t, err, &postCommit)
	require.Len(t, stored, 1)

	events, err := store.ByAggregateID(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestStore_Delete(t *testing.T) {
	db := getTestDB(t)
	store := newTestStore(t, db)
	ctx := context.Background()

	id := uuid.New()
	state := es.AggregateStateWithID[int64](id)
	_, err := store.Persist(ctx, &state, []counterEvent{{Delta: 1}})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))

	events, err := store.ByAggregateID(ctx, id)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestStore_AdminEventOperations(t *testing.T) {
	db := getTestDB(t)
	store := newTestStore(t, db)
	ctx := context.Background()

	state := es.NewAggregateState[int64]()
	stored, err := store.Persist(ctx, &state, []counterEvent{{Delta: 1}})
	require.NoError(t, err)

	event, err := store.EventByID(ctx, stored[0].ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, event.Payload.Delta)

	require.NoError(t, store.UpdateEventPayload(ctx, stored[0].ID, counterEvent{Delta: 7}))
	event, err = store.EventByID(ctx, stored[0].ID)
	require.NoError(t, err)
	require.EqualValues(t, 7, event.Payload.Delta)

	require.NoError(t, store.DeleteEventByID(ctx, stored[0].ID))
	_, err = store.EventByID(ctx, stored[0].ID)
	require.ErrorIs(t, err, es.ErrEventNotFound)

	_, err = store.EventByID(ctx, uuid.New())
	require.ErrorIs(t, err, es.ErrEventNotFound)
	require.ErrorIs(t, store.UpdateEventPayload(ctx, uuid.New(), counterEvent{}), es.ErrEventNotFound)
	require.ErrorIs(t, store.DeleteEventByID(ctx, uuid.New()), es.ErrEventNotFound)
}

func TestStore_MigrationsAreIdempotent(t *testing.T) {
	db := getTestDB(t)
	newTestStore(t, db)
	ctx := context.Background()

	// A second store over the same table must construct cleanly.
	_, err := postgres.New[int64, counterEvent](ctx, db, "counter")
	require.NoError(t, err)
}
