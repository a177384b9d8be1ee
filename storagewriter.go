// StorageWriter lets a caller probe admission before materializing a
// value, for callers where encoding the value is expensive enough to
// be worth skipping on a likely rejection (spec §6).
package strata

import "context"

// StorageWriter is built with Store.Writer and finished with Finish.
type StorageWriter struct {
	store       *Store
	key         []byte
	keyHash     uint64
	forced      bool
	compression CompressionKind
}

// Writer starts a builder for key, defaulting to the store's
// configured compression.
func (s *Store) Writer(key []byte) *StorageWriter {
	return &StorageWriter{
		store:       s,
		key:         key,
		keyHash:     keyHash(key),
		compression: s.cfg.Compression,
	}
}

// Judge probes the admission policy without materializing a value
// (cost 0), returning whether the insert would currently be admitted.
func (w *StorageWriter) Judge() bool {
	if w.forced {
		return true
	}
	return w.store.admission.Judge(w.keyHash, 0)
}

// Force bypasses the admission judge for the eventual Finish call.
func (w *StorageWriter) Force() *StorageWriter {
	w.forced = true
	return w
}

// SetCompression overrides the store's default compression for this
// entry only.
func (w *StorageWriter) SetCompression(kind CompressionKind) *StorageWriter {
	w.compression = kind
	return w
}

// Finish materializes value and runs it through the same admission,
// compression and publish path as Insert.
func (w *StorageWriter) Finish(ctx context.Context, value []byte) (bool, error) {
	return w.store.doInsert(ctx, w.key, value, w.forced, w.compression)
}
