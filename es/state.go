package es

import "github.com/google/uuid"

// AggregateState carries an aggregate identity, the sequence position of
// the last folded event and the in-memory folded state.
//
// A fresh state starts at sequence number 0 with the zero value of S.
// It is advanced only by the AggregateManager folding persisted events;
// handlers never mutate it directly.
type AggregateState[S any] struct {
	id             uuid.UUID
	sequenceNumber int64
	inner          S
}

// NewAggregateState creates a fresh state with a random aggregate ID.
func NewAggregateState[S any]() AggregateState[S] {
	return AggregateStateWithID[S](uuid.New())
}

// AggregateStateWithID creates a fresh state for the given aggregate ID.
func AggregateStateWithID[S any](id uuid.UUID) AggregateState[S] {
	return AggregateState[S]{id: id}
}

// ID returns the aggregate identity this state belongs to.
func (s *AggregateState[S]) ID() uuid.UUID {
	return s.id
}

// SequenceNumber returns the position of the last folded event.
// It is 0 before any event has been folded.
func (s *AggregateState[S]) SequenceNumber() int64 {
	return s.sequenceNumber
}

// NextSequenceNumber returns the sequence number the next persisted
// event will be assigned.
func (s *AggregateState[S]) NextSequenceNumber() int64 {
	return s.sequenceNumber + 1
}

// Inner returns the folded domain state.
func (s *AggregateState[S]) Inner() S {
	return s.inner
}

// fold advances the state past one persisted event.
func (s *AggregateState[S]) fold(sequenceNumber int64, inner S) {
	s.sequenceNumber = sequenceNumber
	s.inner = inner
}
