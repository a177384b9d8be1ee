// Region lifecycle coordination. regionManager is the single authority
// on region state transitions; writer, flusher and reclaimer all go
// through it rather than mutating region state directly, the same
// centralized-state-plus-sync.Cond shape folio's blockWrite/blockRead
// use for its append-only log segments.
package strata

import (
	"context"
	"sync"
)

// regionManager owns every region's lifecycle state and blocks callers
// until a region in the requested state becomes available.
type regionManager struct {
	mu   sync.Mutex
	cond *sync.Cond

	regions []*region

	cleanThreshold int
	closed         bool

	metrics *Metrics
}

func newRegionManager(total, cleanThreshold int, metrics *Metrics) *regionManager {
	rm := &regionManager{
		regions:        make([]*region, total),
		cleanThreshold: cleanThreshold,
		metrics:        metrics,
	}
	rm.cond = sync.NewCond(&rm.mu)
	for i := range rm.regions {
		rm.regions[i] = &region{id: i, state: regionClean}
	}
	return rm
}

// close wakes every blocked waiter so they observe ErrClosed instead of
// hanging forever.
func (rm *regionManager) close() {
	rm.mu.Lock()
	rm.closed = true
	rm.mu.Unlock()
	rm.cond.Broadcast()
}

// cleanCount returns the number of regions currently Clean.
func (rm *regionManager) cleanCount() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.cleanCountLocked()
}

func (rm *regionManager) cleanCountLocked() int {
	n := 0
	for _, r := range rm.regions {
		if r.state == regionClean {
			n++
		}
	}
	return n
}

// belowThreshold reports whether the clean pool has dropped below
// CleanRegionThreshold, the signal reclaimers wait on and admission
// policies may consult to throttle (spec §4.D, §4.I).
func (rm *regionManager) belowThreshold() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.cleanCountLocked() < rm.cleanThreshold
}

// waitBelowThreshold blocks until clean_count < cleanThreshold, the
// gate reclaimers sit behind before asking the eviction policy for a
// victim (spec §4.I step 1).
func (rm *regionManager) waitBelowThreshold(ctx context.Context) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for {
		if rm.closed {
			return ErrClosed
		}
		if rm.cleanCountLocked() < rm.cleanThreshold {
			return nil
		}
		if !rm.waitLocked(ctx) {
			return ctx.Err()
		}
	}
}

// acquireWritable blocks until a Clean region exists, transitions it to
// Writable, and returns it.
func (rm *regionManager) acquireWritable(ctx context.Context) (*region, error) {
	return rm.waitForState(ctx, regionClean, func(r *region) {
		r.state = regionWritable
		r.writeOffset = 0
	})
}

// markFull transitions a Writable region to Full once the writer has
// closed its batch (either because it ran out of room or was flushed
// explicitly).
func (rm *regionManager) markFull(r *region) {
	rm.mu.Lock()
	r.state = regionFull
	rm.mu.Unlock()
}

// markEvictable transitions a Full region into the pool reclaimers pick
// victims from. Kept as a distinct step from markFull so a region's
// entries are fully published and frequency-tracked before it can be
// chosen for reclamation.
func (rm *regionManager) markEvictable(r *region) {
	rm.mu.Lock()
	r.state = regionEvictable
	rm.mu.Unlock()
	rm.cond.Broadcast()
}

// evictableRegions returns a snapshot of every region currently in the
// Evictable state, for the eviction policy to score.
func (rm *regionManager) evictableRegions() []*region {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.snapshotEvictableLocked()
}

// acquireEvictable blocks until at least one Evictable region exists,
// then hands the full snapshot to pick so the eviction policy can score
// across all candidates; the chosen region transitions to Reclaiming.
func (rm *regionManager) acquireEvictable(ctx context.Context, pick func([]*region) *region) (*region, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for {
		if rm.closed {
			return nil, ErrClosed
		}
		candidates := rm.snapshotEvictableLocked()
		if len(candidates) > 0 {
			if victim := pick(candidates); victim != nil {
				victim.state = regionReclaiming
				return victim, nil
			}
		}
		if !rm.waitLocked(ctx) {
			return nil, ctx.Err()
		}
	}
}

func (rm *regionManager) snapshotEvictableLocked() []*region {
	out := make([]*region, 0)
	for _, r := range rm.regions {
		if r.state == regionEvictable {
			out = append(out, r)
		}
	}
	return out
}

// beginErase transitions a Reclaiming region to Erasing once its live
// entries have been drained and reinsertion has been judged.
func (rm *regionManager) beginErase(r *region) {
	rm.mu.Lock()
	r.state = regionErasing
	rm.mu.Unlock()
}

// finishErase recycles an Erasing region back to Clean on success, or
// Poisoned on failure. A Poisoned region never reenters the clean pool
// (spec §4.I); Lookup still serves entries from other regions, only
// Insert is affected once poisoning exhausts the clean supply.
func (rm *regionManager) finishErase(r *region, erased bool) {
	if !erased {
		if rm.metrics != nil {
			rm.metrics.ReclaimFailed.Add(1)
		}
		rm.poisonRegion(r)
		return
	}
	rm.mu.Lock()
	r.state = regionClean
	r.writeOffset = 0
	rm.mu.Unlock()
	rm.cond.Broadcast()
}

// poisonRegion permanently excludes r from the clean pool, used both by
// the reclaimer on erase failure and by the flusher when a region's
// write keeps failing (spec §7's "persistent failures may be marked
// Poisoned").
func (rm *regionManager) poisonRegion(r *region) {
	rm.mu.Lock()
	r.state = regionPoisoned
	rm.mu.Unlock()
	rm.cond.Broadcast()
}

// waitForState blocks until a region is in `want`, applies transition
// under the lock, and wakes the next waiter.
func (rm *regionManager) waitForState(ctx context.Context, want regionState, transition func(*region)) (*region, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for {
		if rm.closed {
			return nil, ErrClosed
		}
		for _, r := range rm.regions {
			if r.state == want {
				transition(r)
				rm.cond.Broadcast()
				return r, nil
			}
		}
		if !rm.waitLocked(ctx) {
			return nil, ctx.Err()
		}
	}
}

// waitLocked blocks on rm.cond, honoring ctx cancellation by spawning a
// goroutine that broadcasts when ctx is done. Returns false if ctx was
// the reason it woke.
func (rm *regionManager) waitLocked(ctx context.Context) bool {
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		rm.cond.Broadcast()
		close(done)
	})
	defer stop()

	rm.cond.Wait()

	select {
	case <-ctx.Done():
		return false
	default:
		return true
	}
}

// poisonedCount reports how many regions have permanently exited the
// reclaim cycle, used by IsReady to detect a fully exhausted arena.
func (rm *regionManager) poisonedCount() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	n := 0
	for _, r := range rm.regions {
		if r.state == regionPoisoned {
			n++
		}
	}
	return n
}

func (rm *regionManager) total() int {
	return len(rm.regions)
}
