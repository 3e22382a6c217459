package inmemory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/eventlock/eventlock/es"
	"github.com/eventlock/eventlock/es/inmemory"
)

type note struct {
	Body string `json:"body"`
}

func TestStore_PersistAssignsContiguousSequenceNumbers(t *testing.T) {
	store := inmemory.New[struct{}, note]("note")
	ctx := context.Background()

	id := uuid.New()
	state := es.AggregateStateWithID[struct{}](id)

	stored, err := store.Persist(ctx, &state, []note{{Body: "a"}, {Body: "b"}, {Body: "c"}})
	require.NoError(t, err)
	require.Len(t, stored, 3)

	for i, event := range stored {
		require.EqualValues(t, i+1, event.SequenceNumber)
		require.Equal(t, id, event.AggregateID)
		require.NotEqual(t, uuid.Nil, event.ID)
		require.False(t, event.OccurredAt.IsZero())
	}
}

func TestStore_ByAggregateID_UnknownIDIsEmpty(t *testing.T) {
	store := inmemory.New[struct{}, note]("note")

	events, err := store.ByAggregateID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestStore_Persist_EmptyBatch(t *testing.T) {
	store := inmemory.New[struct{}, note]("note")
	state := es.NewAggregateState[struct{}]()

	_, err := store.Persist(context.Background(), &state, nil)
	require.ErrorIs(t, err, es.ErrNoEvents)
}

func TestStore_Persist_StaleStateConflicts(t *testing.T) {
	store := inmemory.New[struct{}, note]("note")
	ctx := context.Background()

	id := uuid.New()
	fresh := es.AggregateStateWithID[struct{}](id)
	stale := fresh

	_, err := store.Persist(ctx, &fresh, []note{{Body: "first"}})
	require.NoError(t, err)

	_, err = store.Persist(ctx, &stale, []note{{Body: "second"}})
	require.ErrorIs(t, err, es.ErrConflict)

	// The losing write left no trace.
	events, err := store.ByAggregateID(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "first", events[0].Payload.Body)
}

func TestStore_Persist_TransactionalVetoAbortsWrite(t *testing.T) {
	errVeto := errors.New("projection rejected event")
	store := inmemory.New[struct{}, note]("note",
		inmemory.WithTransactionalEventHandlers[note](
			es.TransactionalEventHandlerFunc[note](func(_ context.Context, _ es.DBTX, event es.StoreEvent[note]) error {
				if event.Payload.Body == "bad" {
					return errVeto
				}
				return nil
			}),
		),
	)
	ctx := context.Background()

	id := uuid.New()
	state := es.AggregateStateWithID[struct{}](id)

	_, err := store.Persist(ctx, &state, []note{{Body: "ok"}, {Body: "bad"}})

	var handlerErr *es.HandlerError
	require.ErrorAs(t, err, &handlerErr)
	require.ErrorIs(t, err, errVeto)

	// The whole batch rolled back, including the event the handler accepted.
	events, err := store.ByAggregateID(ctx, id)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestStore_Persist_PostCommitFailuresAreCollected(t *testing.T) {
	errMail := errors.New("mail gateway down")
	errBus := errors.New("broker unreachable")
	store := inmemory.New[struct{}, note]("note",
		inmemory.WithEventHandlers[note](
			es.EventHandlerFunc[note](func(context.Context, es.StoreEvent[note]) error {
				return errMail
			}),
		),
		inmemory.WithEventBuses[note](
			es.EventBusFunc[note](func(context.Context, []es.StoreEvent[note]) error {
				return errBus
			}),
		),
	)
	ctx := context.Background()

	id := uuid.New()
	state := es.AggregateStateWithID[struct{}](id)

	stored, err := store.Persist(ctx, &state, []note{{Body: "a"}, {Body: "b"}})

	var postCommit *es.PostCommitError
	require.ErrorAs(t, err, &postCommit)
	require.Len(t, postCommit.Errs, 3) // one per event for the handler, one for the bus
	require.ErrorIs(t, err, errMail)
	require.ErrorIs(t, err, errBus)

	// The write itself is durable.
	require.Len(t, stored, 2)
	events, err := store.ByAggregateID(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestStore_Persist_BusReceivesFullBatch(t *testing.T) {
	var published []es.StoreEvent[note]
	store := inmemory.New[struct{}, note]("note",
		inmemory.WithEventBuses[note](
			es.EventBusFunc[note](func(_ context.Context, events []es.StoreEvent[note]) error {
				published = events
				return nil
			}),
		),
	)
	ctx := context.Background()

	state := es.NewAggregateState[struct{}]()
	stored, err := store.Persist(ctx, &state, []note{{Body: "a"}, {Body: "b"}})
	require.NoError(t, err)
	require.Equal(t, stored, published)
}

func TestStore_Delete(t *testing.T) {
	store := inmemory.New[struct{}, note]("note")
	ctx := context.Background()

	id := uuid.New()
	state := es.AggregateStateWithID[struct{}](id)
	_, err := store.Persist(ctx, &state, []note{{Body: "a"}})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))

	events, err := store.ByAggregateID(ctx, id)
	require.NoError(t, err)
	require.Empty(t, events)

	// Deleting an unknown aggregate is a no-op.
	require.NoError(t, store.Delete(ctx, uuid.New()))
}

func TestStore_HotSwapHandlers(t *testing.T) {
	store := inmemory.New[struct{}, note]("note")
	ctx := context.Background()

	var calls int
	store.SetEventHandlers(es.EventHandlerFunc[note](func(context.Context, es.StoreEvent[note]) error {
		calls++
		return nil
	}))

	state := es.NewAggregateState[struct{}]()
	_, err := store.Persist(ctx, &state, []note{{Body: "a"}})
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	// Swapping to an empty registry stops further dispatch.
	store.SetEventHandlers()

	next := es.NewAggregateState[struct{}]()
	_, err = store.Persist(ctx, &next, []note{{Body: "b"}})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestStore_IndependentAggregateStreams(t *testing.T) {
	store := inmemory.New[struct{}, note]("note")
	ctx := context.Background()

	first := es.NewAggregateState[struct{}]()
	second := es.NewAggregateState[struct{}]()

	_, err := store.Persist(ctx, &first, []note{{Body: "a"}})
	require.NoError(t, err)
	stored, err := store.Persist(ctx, &second, []note{{Body: "b"}})
	require.NoError(t, err)

	// Sequence numbers are per aggregate, not global.
	require.EqualValues(t, 1, stored[0].SequenceNumber)
}
