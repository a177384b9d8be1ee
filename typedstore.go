// TypedStore wraps the byte-level Store with Codec[K] and Codec[V],
// giving callers a (key → value) API over arbitrary Go types without
// the core engine ever needing generics (spec §1's opaque-codec note).
package strata

import "context"

// TypedStore is the generic facade most callers use directly.
type TypedStore[K any, V any] struct {
	store    *Store
	keyCodec Codec[K]
	valCodec Codec[V]
}

// OpenTyped opens a Store and wraps it with the given codecs. Passing
// nil for either codec defaults to JSONCodec.
func OpenTyped[K any, V any](cfg Config, admission AdmissionPolicy, reinsertion ReinsertionPolicy, keyCodec Codec[K], valCodec Codec[V]) (*TypedStore[K, V], error) {
	store, err := Open(cfg, admission, reinsertion)
	if err != nil {
		return nil, err
	}
	if keyCodec == nil {
		keyCodec = JSONCodec[K]{}
	}
	if valCodec == nil {
		valCodec = JSONCodec[V]{}
	}
	return &TypedStore[K, V]{store: store, keyCodec: keyCodec, valCodec: valCodec}, nil
}

func (t *TypedStore[K, V]) Insert(ctx context.Context, key K, value V) (bool, error) {
	kb, err := t.keyCodec.Encode(key)
	if err != nil {
		return false, err
	}
	vb, err := t.valCodec.Encode(value)
	if err != nil {
		return false, err
	}
	return t.store.Insert(ctx, kb, vb)
}

func (t *TypedStore[K, V]) Lookup(ctx context.Context, key K) (V, bool, error) {
	var zero V
	kb, err := t.keyCodec.Encode(key)
	if err != nil {
		return zero, false, err
	}
	vb, ok, err := t.store.Lookup(ctx, kb)
	if err != nil || !ok {
		return zero, ok, err
	}
	v, err := t.valCodec.Decode(vb)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (t *TypedStore[K, V]) Exists(key K) (bool, error) {
	kb, err := t.keyCodec.Encode(key)
	if err != nil {
		return false, err
	}
	return t.store.Exists(kb), nil
}

func (t *TypedStore[K, V]) Remove(key K) (bool, error) {
	kb, err := t.keyCodec.Encode(key)
	if err != nil {
		return false, err
	}
	return t.store.Remove(kb)
}

func (t *TypedStore[K, V]) Clear() error { return t.store.Clear() }

func (t *TypedStore[K, V]) IsReady() bool { return t.store.IsReady() }

func (t *TypedStore[K, V]) Close() error { return t.store.Close() }
