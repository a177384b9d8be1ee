// Package strata implements a persistent hybrid key-value cache: an
// in-memory catalog over a fixed-capacity arena of aligned, append-only
// regions on local block storage. Hot values live in the catalog's
// pointer; cold bytes live on disk until a reclaimer recycles the region.
package strata

import "errors"

// Sentinel errors returned by store and subsystem operations.
var (
	// ErrIOAlignment is returned when a caller issues a read or write whose
	// offset or length is not a multiple of the device's align value.
	ErrIOAlignment = errors.New("strata: unaligned io")

	// ErrIO wraps an underlying device I/O failure.
	ErrIO = errors.New("strata: device io error")

	// ErrCorrupted is returned when an entry's header or checksum fails
	// validation, either during lookup or during open-time recovery.
	ErrCorrupted = errors.New("strata: corrupted entry")

	// ErrCodec is returned when encoding or decoding a key or value fails.
	ErrCodec = errors.New("strata: codec error")

	// ErrClosed is returned by any operation performed on a closed store.
	ErrClosed = errors.New("strata: store is closed")

	// ErrNotFound reports that a key has no live entry. Store.Remove
	// signals a missing key with a false result, not with this error.
	ErrNotFound = errors.New("strata: not found")

	// ErrEntryTooLarge is returned when an encoded entry cannot fit in a
	// single region regardless of the region's write cursor.
	ErrEntryTooLarge = errors.New("strata: entry exceeds region capacity")

	// ErrInvalidConfig is returned by Open when configuration values are
	// inconsistent (see Config.validate).
	ErrInvalidConfig = errors.New("strata: invalid config")

	// ErrNoCleanRegion reports that no clean region can be obtained. A
	// writer or reclaimer blocked on the region manager during shutdown
	// receives ErrClosed, not this error.
	ErrNoCleanRegion = errors.New("strata: no clean region available")

	// ErrRegionPoisoned marks a region that failed to erase and has been
	// permanently excluded from the clean pool.
	ErrRegionPoisoned = errors.New("strata: region poisoned")
)
