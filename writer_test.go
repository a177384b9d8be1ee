// Batch assembler tests.
package strata

import (
	"testing"
	"time"
)

func makePendingEntry(framedLen int) pendingEntry {
	return pendingEntry{framed: make([]byte, framedLen)}
}

func TestBatchPushAccepted(t *testing.T) {
	b := newBatch(4096, 4096, 0)
	if got := b.push(makePendingEntry(512), 4096); got != pushAccepted {
		t.Fatalf("push = %v, want pushAccepted", got)
	}
	if b.empty() {
		t.Error("batch empty after an accepted push")
	}
}

func TestBatchPushRotatesWhenOverIOSize(t *testing.T) {
	b := newBatch(1024, 4096, 0)
	if got := b.push(makePendingEntry(1000), 4096); got != pushAccepted {
		t.Fatalf("first push = %v, want pushAccepted", got)
	}
	if got := b.push(makePendingEntry(100), 4096); got != pushRotateAndRetry {
		t.Fatalf("second push over io_size = %v, want pushRotateAndRetry", got)
	}
}

func TestBatchPushRotatesWhenExceedingRegionRemaining(t *testing.T) {
	b := newBatch(1<<20, 4096, 0)
	if got := b.push(makePendingEntry(5000), 4096); got != pushRotateAndRetry {
		t.Fatalf("push = %v, want pushRotateAndRetry when entry exceeds region remaining", got)
	}
	if !b.empty() {
		t.Error("batch mutated despite a rejected push")
	}
}

func TestBatchPushRotatesOnCumulativeRegionOverflow(t *testing.T) {
	// io_size (1 MiB) is larger than the region's remaining tail (4096),
	// which validate permits. A first entry fits the remaining tail
	// exactly; a second must rotate even though both together are well
	// under io_size, or the batch would flush past the region boundary.
	b := newBatch(1<<20, 4096, 0)
	if got := b.push(makePendingEntry(4096), 4096); got != pushAccepted {
		t.Fatalf("first push = %v, want pushAccepted", got)
	}
	if got := b.push(makePendingEntry(100), 4096); got != pushRotateAndRetry {
		t.Fatalf("second push over region remaining = %v, want pushRotateAndRetry", got)
	}
	if len(b.entries) != 1 {
		t.Errorf("batch entries = %d, want 1 (rejected push must not mutate the batch)", len(b.entries))
	}
}

func TestBatchReadyOnFullBuffer(t *testing.T) {
	b := newBatch(100, 4096, time.Hour)
	b.push(makePendingEntry(100), 4096)
	if !b.ready() {
		t.Error("batch at io_size capacity not ready")
	}
}

func TestBatchReadyOnSoftTTL(t *testing.T) {
	defer func() { nowFunc = time.Now }()
	start := time.Now()
	nowFunc = func() time.Time { return start }

	b := newBatch(1 << 20, 4096, 5*time.Millisecond)
	b.push(makePendingEntry(10), 4096)
	if b.ready() {
		t.Fatal("batch ready before soft TTL elapsed")
	}

	nowFunc = func() time.Time { return start.Add(10 * time.Millisecond) }
	if !b.ready() {
		t.Error("batch not ready after soft TTL elapsed")
	}
}

func TestBatchNotReadyWhenEmpty(t *testing.T) {
	b := newBatch(100, 4096, time.Nanosecond)
	if b.ready() {
		t.Error("empty batch reported ready")
	}
}

func TestBatchCloseResetsAndPads(t *testing.T) {
	b := newBatch(4096, 512, 0)
	b.push(makePendingEntry(10), 4096)
	buf, entries := b.close()
	if len(buf)%512 != 0 {
		t.Errorf("closed buffer length %d not padded to align 512", len(buf))
	}
	if len(entries) != 1 {
		t.Errorf("closed entries = %d, want 1", len(entries))
	}
	if !b.empty() {
		t.Error("batch not reset after close")
	}
}
