// regionManager lifecycle tests.
//
// These exercise the state machine directly (Clean -> Writable -> Full
// -> Evictable -> Reclaiming -> Erasing -> Clean/Poisoned) without a
// real device, since the transitions and blocking behaviour are
// independent of how bytes actually get written.
package strata

import (
	"context"
	"testing"
	"time"
)

func TestAcquireWritableTransitionsState(t *testing.T) {
	rm := newRegionManager(2, 1, &Metrics{})
	r, err := rm.acquireWritable(context.Background())
	if err != nil {
		t.Fatalf("acquireWritable: %v", err)
	}
	if r.state != regionWritable {
		t.Errorf("state = %v, want writable", r.state)
	}
	if got := rm.cleanCount(); got != 1 {
		t.Errorf("cleanCount = %d, want 1", got)
	}
}

func TestAcquireWritableBlocksUntilClean(t *testing.T) {
	rm := newRegionManager(1, 0, &Metrics{})
	r, err := rm.acquireWritable(context.Background())
	if err != nil {
		t.Fatalf("acquireWritable: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := rm.acquireWritable(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("acquireWritable returned early with no clean region: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	rm.markFull(r)
	rm.markEvictable(r)
	rm.beginErase(r)
	rm.finishErase(r, true)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("acquireWritable after region recycled: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("acquireWritable never woke after a region became clean")
	}
}

func TestAcquireEvictablePicksViaCallback(t *testing.T) {
	rm := newRegionManager(3, 1, &Metrics{})
	r0, _ := rm.acquireWritable(context.Background())
	r1, _ := rm.acquireWritable(context.Background())
	rm.markFull(r0)
	rm.markEvictable(r0)
	rm.markFull(r1)
	rm.markEvictable(r1)

	var seen []*region
	victim, err := rm.acquireEvictable(context.Background(), func(candidates []*region) *region {
		seen = candidates
		return candidates[0]
	})
	if err != nil {
		t.Fatalf("acquireEvictable: %v", err)
	}
	if len(seen) != 2 {
		t.Errorf("pick callback saw %d candidates, want 2", len(seen))
	}
	if victim.state != regionReclaiming {
		t.Errorf("victim state = %v, want reclaiming", victim.state)
	}
}

func TestFinishEraseFailurePoisons(t *testing.T) {
	m := &Metrics{}
	rm := newRegionManager(1, 0, m)
	r, _ := rm.acquireWritable(context.Background())
	rm.markFull(r)
	rm.markEvictable(r)
	rm.beginErase(r)
	rm.finishErase(r, false)

	if r.state != regionPoisoned {
		t.Errorf("state = %v, want poisoned", r.state)
	}
	if rm.poisonedCount() != 1 {
		t.Errorf("poisonedCount = %d, want 1", rm.poisonedCount())
	}
	if m.ReclaimFailed.Load() != 1 {
		t.Errorf("ReclaimFailed = %d, want 1", m.ReclaimFailed.Load())
	}
}

func TestFinishEraseSuccessRecyclesToClean(t *testing.T) {
	rm := newRegionManager(1, 0, &Metrics{})
	r, _ := rm.acquireWritable(context.Background())
	r.writeOffset = 1024
	rm.markFull(r)
	rm.markEvictable(r)
	rm.beginErase(r)
	rm.finishErase(r, true)

	if r.state != regionClean {
		t.Errorf("state = %v, want clean", r.state)
	}
	if r.writeOffset != 0 {
		t.Errorf("writeOffset = %d, want 0 after recycle", r.writeOffset)
	}
}

func TestWaitBelowThresholdUnblocksWhenCleanPoolDrops(t *testing.T) {
	rm := newRegionManager(2, 1, &Metrics{})
	rm.acquireWritable(context.Background())
	if rm.belowThreshold() {
		t.Fatal("belowThreshold true with 1 clean region and threshold 1")
	}

	done := make(chan error, 1)
	go func() {
		done <- rm.waitBelowThreshold(context.Background())
	}()

	select {
	case err := <-done:
		t.Fatalf("waitBelowThreshold returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	// Taking the last clean region drops the pool below the threshold.
	if _, err := rm.acquireWritable(context.Background()); err != nil {
		t.Fatalf("acquireWritable: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waitBelowThreshold: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waitBelowThreshold never woke after the clean pool dropped below threshold")
	}
}

func TestRegionManagerCloseWakesWaiters(t *testing.T) {
	rm := newRegionManager(1, 0, &Metrics{})
	rm.acquireWritable(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := rm.acquireWritable(context.Background())
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	rm.close()

	select {
	case err := <-done:
		if err != ErrClosed {
			t.Errorf("err = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("acquireWritable never woke after close")
	}
}

func TestAcquireWritableContextCancel(t *testing.T) {
	rm := newRegionManager(1, 0, &Metrics{})
	rm.acquireWritable(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := rm.acquireWritable(ctx)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("acquireWritable returned nil error after ctx cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("acquireWritable never woke after ctx cancel")
	}
}
