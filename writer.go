// Per-flusher batch assembler. Accepted entries are framed immediately
// and appended to an in-RAM buffer aligned to the device's align value;
// the buffer is handed to the flusher's device write once it reaches
// io_size, a soft timer elapses, or the caller forces a close (spec
// §4.G). This generalizes folio's single-record atomic append to a
// variable-size aligned batch.
package strata

import "time"

// pendingEntry pairs a framed entry with the completion plumbing the
// flusher needs to publish it and signal the caller.
type pendingEntry struct {
	header          entryHeader
	framed          []byte
	keyHash         uint64
	compressedLen   uint32
	uncompressedLen uint32
	compression     CompressionKind
	done            func(inserted bool, err error)
}

// pushResult reports what the writer did with a push() call.
type pushResult int

const (
	pushAccepted pushResult = iota
	pushRotateAndRetry
)

// batch is one flusher's in-progress buffer.
type batch struct {
	ioSize  int
	align   int
	buf     []byte
	entries []pendingEntry
	opened  time.Time
	softTTL time.Duration
}

func newBatch(ioSize, align int, softTTL time.Duration) *batch {
	return &batch{
		ioSize:  ioSize,
		align:   align,
		opened:  time.Time{},
		softTTL: softTTL,
	}
}

// push attempts to add a framed entry (already padded to align) to the
// batch. It returns pushRotateAndRetry without mutating the batch if
// the entry would push a non-empty batch past io_size, or the batch
// past the region's remaining capacity (a first entry larger than
// io_size is accepted on its own);
// the caller is expected to close/flush the current batch and retry
// against a new one.
func (b *batch) push(e pendingEntry, regionRemaining int64) pushResult {
	if len(b.entries) > 0 {
		if len(b.buf)+len(e.framed) > b.ioSize {
			return pushRotateAndRetry
		}
	}
	// Checked cumulatively, not just against this one entry: io_size can
	// exceed a region's remaining tail (validate never requires
	// RegionSize % IOSize == 0), so a batch that fits io_size can still
	// overrun the region if checked entry-by-entry.
	if int64(len(b.buf)+len(e.framed)) > regionRemaining {
		return pushRotateAndRetry
	}
	if len(b.entries) == 0 {
		b.opened = nowFunc()
	}
	b.buf = append(b.buf, e.framed...)
	b.entries = append(b.entries, e)
	return pushAccepted
}

// ready reports whether the batch should be closed: full, or its soft
// timer has elapsed (bounded tail latency, spec §4.G).
func (b *batch) ready() bool {
	if len(b.entries) == 0 {
		return false
	}
	if len(b.buf) >= b.ioSize {
		return true
	}
	if b.softTTL > 0 && nowFunc().Sub(b.opened) >= b.softTTL {
		return true
	}
	return false
}

// close pads the buffer to align and returns the finished batch's
// bytes and entries, resetting the assembler.
func (b *batch) close() ([]byte, []pendingEntry) {
	buf := padTo(b.buf, b.align)
	entries := b.entries
	b.buf = nil
	b.entries = nil
	return buf, entries
}

func (b *batch) empty() bool {
	return len(b.entries) == 0
}

// nowFunc is indirected so batch timing logic can be exercised
// deterministically in tests.
var nowFunc = time.Now
