package es

import (
	"time"

	"github.com/google/uuid"
)

// StoreEvent is a persisted event. It is immutable once written except
// through the adapters' administrative operations, which exist for
// operational correction only.
//
// (AggregateID, SequenceNumber) is unique per event table and is the
// optimistic-concurrency key. ID is globally unique and is the
// addressable handle for point lookups.
type StoreEvent[E any] struct {
	// ID is the unique identifier of this event row.
	ID uuid.UUID

	// AggregateID identifies the aggregate instance this event belongs to.
	AggregateID uuid.UUID

	// Payload is the strongly-typed event decoded from storage.
	Payload E

	// OccurredAt is when the event was persisted.
	OccurredAt time.Time

	// SequenceNumber is the per-aggregate monotonic position of this
	// event, starting at 1 for the first event.
	SequenceNumber int64
}
