package es

import "encoding/json"

// Codec converts event payloads to and from the byte representation used
// for storage. The round trip must be lossless: Unmarshal(Marshal(e))
// yields an event equal to e for replay purposes.
//
// Payloads are stored as raw bytes, so any serialization format works.
type Codec[E any] interface {
	Marshal(event E) ([]byte, error)
	Unmarshal(data []byte) (E, error)
}

// JSONCodec is the default Codec, backed by encoding/json.
//
// It requires E to be a concrete type. When E is an interface (a
// sum-type event), supply a custom Codec that records the concrete type
// alongside the payload.
type JSONCodec[E any] struct{}

// Marshal implements Codec.
func (JSONCodec[E]) Marshal(event E) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, &CodecError{Op: "marshal", Err: err}
	}
	return data, nil
}

// Unmarshal implements Codec.
func (JSONCodec[E]) Unmarshal(data []byte) (E, error) {
	var event E
	if err := json.Unmarshal(data, &event); err != nil {
		return event, &CodecError{Op: "unmarshal", Err: err}
	}
	return event, nil
}
