// Package natsbus provides an es.EventBus backed by NATS JetStream.
//
// Committed events are published to "<subject prefix>.<aggregate id>",
// so subscribers can filter per aggregate instance or consume the whole
// stream. Publishing happens post-commit: a failed publish is reported
// through the persist call's PostCommitError but never affects the log.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/eventlock/eventlock/es"
)

// Bus publishes committed events for one aggregate kind to a JetStream stream.
type Bus[E any] struct {
	js            jetstream.JetStream
	codec         es.Codec[E]
	subjectPrefix string
}

// Config configures a Bus.
type Config struct {
	// StreamName is the JetStream stream ensured at construction.
	StreamName string

	// SubjectPrefix is the subject events are published under,
	// suffixed with the aggregate ID. Defaults to "events.<aggregate>".
	SubjectPrefix string
}

// wireEvent is the published representation of a StoreEvent. The payload
// travels in the store's codec encoding; the envelope itself is JSON.
type wireEvent struct {
	ID             string          `json:"id"`
	AggregateID    string          `json:"aggregate_id"`
	Payload        json.RawMessage `json:"payload"`
	OccurredAt     time.Time       `json:"occurred_at"`
	SequenceNumber int64           `json:"sequence_number"`
}

// New creates a Bus for the named aggregate, ensuring the JetStream
// stream exists. The codec should match the store's payload codec.
func New[E any](ctx context.Context, nc *nats.Conn, aggregateName string, codec es.Codec[E], cfg Config) (*Bus[E], error) {
	if cfg.StreamName == "" {
		cfg.StreamName = fmt.Sprintf("EVENTS_%s", aggregateName)
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = fmt.Sprintf("events.%s", aggregateName)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{cfg.SubjectPrefix + ".>"},
		Storage:  jetstream.FileStorage,
	}); err != nil {
		return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.StreamName, err)
	}

	return &Bus[E]{
		js:            js,
		codec:         codec,
		subjectPrefix: cfg.SubjectPrefix,
	}, nil
}

// Publish implements es.EventBus. Events are published in batch order;
// the first publish failure aborts the remainder and is reported.
func (b *Bus[E]) Publish(ctx context.Context, events []es.StoreEvent[E]) error {
	for _, event := range events {
		data, err := b.encode(event)
		if err != nil {
			return err
		}
		subject := fmt.Sprintf("%s.%s", b.subjectPrefix, event.AggregateID)
		if _, err := b.js.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
		}
	}
	return nil
}

func (b *Bus[E]) encode(event es.StoreEvent[E]) ([]byte, error) {
	payload, err := b.codec.Marshal(event.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEvent{
		ID:             event.ID.String(),
		AggregateID:    event.AggregateID.String(),
		Payload:        payload,
		OccurredAt:     event.OccurredAt,
		SequenceNumber: event.SequenceNumber,
	})
}

var _ es.EventBus[struct{}] = (*Bus[struct{}])(nil)
