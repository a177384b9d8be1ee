// NoneStore is a no-op engine: it rejects every admission and reports a
// cache miss for every lookup. Ported from original_source's
// foyer-storage-bench None store, useful as a disabled-cache baseline
// callers can swap in without changing call sites (spec §6).
package strata

import "context"

// ByteStore is the interface Store and NoneStore both satisfy, letting
// callers swap between the real engine and the no-op baseline.
type ByteStore interface {
	IsReady() bool
	Insert(ctx context.Context, key, value []byte) (bool, error)
	InsertAsyncWithCallback(ctx context.Context, key, value []byte, cb func(inserted bool, err error)) error
	Lookup(ctx context.Context, key []byte) ([]byte, bool, error)
	Exists(key []byte) bool
	Remove(key []byte) (bool, error)
	Clear() error
	Close() error
}

var (
	_ ByteStore = (*Store)(nil)
	_ ByteStore = (*NoneStore)(nil)
)

// NoneStore implements ByteStore by doing nothing durable at all.
type NoneStore struct{}

// NewNoneStore returns a store that always misses and never admits.
func NewNoneStore() *NoneStore { return &NoneStore{} }

func (*NoneStore) IsReady() bool { return true }

func (*NoneStore) Insert(context.Context, []byte, []byte) (bool, error) { return false, nil }

func (*NoneStore) InsertAsyncWithCallback(_ context.Context, _, _ []byte, cb func(bool, error)) error {
	cb(false, nil)
	return nil
}

func (*NoneStore) Lookup(context.Context, []byte) ([]byte, bool, error) { return nil, false, nil }

func (*NoneStore) Exists([]byte) bool { return false }

func (*NoneStore) Remove([]byte) (bool, error) { return false, nil }

func (*NoneStore) Clear() error { return nil }

func (*NoneStore) Close() error { return nil }

// NoneWriter is the StorageWriter-shaped counterpart: Judge always
// reports false and Finish never admits.
type NoneWriter struct{}

func (NoneWriter) Judge() bool { return false }

func (w NoneWriter) Force() NoneWriter { return w }

func (w NoneWriter) SetCompression(CompressionKind) NoneWriter { return w }

func (NoneWriter) Finish(context.Context, []byte) (bool, error) { return false, nil }
