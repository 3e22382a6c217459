package es

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConflict indicates a sequence-number race detected by the
	// (aggregate_id, sequence_number) uniqueness constraint at write
	// time: another writer persisted a higher-or-equal sequence number
	// for this aggregate between this caller's load and this call's
	// write. The caller must reload state and retry the decision; the
	// store never retries automatically.
	ErrConflict = errors.New("optimistic concurrency conflict")

	// ErrNoEvents indicates an attempt to persist zero events.
	ErrNoEvents = errors.New("no events to persist")

	// ErrEventNotFound indicates a point lookup by event ID matched no row.
	ErrEventNotFound = errors.New("event not found")
)

// HandlerError indicates a transactional handler vetoed the write.
// The whole batch was rolled back and none of the events became visible.
type HandlerError struct {
	// Handler is the concrete type of the rejecting handler, for logging.
	Handler string
	Err     error
}

// Error implements error.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("transactional handler %s rejected the write: %v", e.Handler, e.Err)
}

// Unwrap returns the handler's own error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PostCommitError aggregates failures from post-commit handlers and
// event-bus publishers. The write it accompanies is already durable:
// the persisted batch is returned alongside this error and must not be
// treated as rolled back.
type PostCommitError struct {
	Errs []error
}

// Error implements error.
func (e *PostCommitError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d post-commit failure(s): %s", len(e.Errs), strings.Join(msgs, "; "))
}

// Unwrap exposes the collected failures to errors.Is / errors.As.
func (e *PostCommitError) Unwrap() []error {
	return e.Errs
}

// CodecError indicates a payload (de)serialization failure on read or write.
type CodecError struct {
	// Op is "marshal" or "unmarshal".
	Op  string
	Err error
}

// Error implements error.
func (e *CodecError) Error() string {
	return fmt.Sprintf("codec %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying serialization error.
func (e *CodecError) Unwrap() error {
	return e.Err
}
