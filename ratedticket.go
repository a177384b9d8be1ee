// RatedTicket is a token bucket driven by an externally observed byte
// counter rather than wall-clock sleep, ported from original_source's
// foyer_common::rated_ticket: probe() samples the delta of a monotonic
// counter (op_bytes_flush) since the last probe and credits the bucket
// with that amount before checking capacity, so budget returns only as
// fast as the device absorbs bytes (spec §4.E rationale). The bucket
// has no time-based refill.
package strata

import "sync"

// RatedTicket is a non-blocking byte-budget gate. probe() never sleeps;
// callers that are refused simply observe false.
type RatedTicket struct {
	mu sync.Mutex

	rateBytesPerSec float64
	capacity        float64
	available       float64
	lastSample      uint64
	haveSample      bool
}

// NewRatedTicket creates a bucket holding at most rateBytesPerSec bytes,
// seeded full. rateBytesPerSec sets only that capacity: the bucket does
// not refill with elapsed time, only from observed counter deltas.
func NewRatedTicket(rateBytesPerSec float64) *RatedTicket {
	return &RatedTicket{
		rateBytesPerSec: rateBytesPerSec,
		capacity:        rateBytesPerSec,
		available:       rateBytesPerSec,
	}
}

// probe samples cumulativeBytes (a monotonic counter such as
// Metrics.OpBytesFlush), adds the observed delta to the bucket (capped
// at capacity), and returns true iff cost bytes fit within the
// remaining budget, debiting cost when they do.
func (t *RatedTicket) probe(cumulativeBytes uint64, cost float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.haveSample {
		t.lastSample = cumulativeBytes
		t.haveSample = true
	} else if cumulativeBytes > t.lastSample {
		delta := float64(cumulativeBytes - t.lastSample)
		t.lastSample = cumulativeBytes
		t.available += delta
		if t.available > t.capacity {
			t.available = t.capacity
		}
	}

	if t.available >= cost {
		t.available -= cost
		return true
	}
	return false
}
