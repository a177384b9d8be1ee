// Codec lets callers supply their own key/value serialization, treated
// as an opaque transform the engine never inspects (spec §1). TypedStore[K, V]
// wraps the byte-level engine with a Codec[K] and Codec[V] so the core
// subsystems (device, catalog, writer, flusher, reclaimer) only ever
// handle []byte and a key hash.
package strata

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Codec encodes and decodes a Go value to and from the bytes strata
// stores on disk.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// JSONCodec is the default Codec, built on goccy/go-json for speed over
// encoding/json without changing the wire format's semantics.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return data, nil
}

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return v, nil
}
