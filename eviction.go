// W-TinyLFU eviction policy: an in-memory recency/frequency ranking over
// live catalog entries, used two ways — admission-to-main comparisons
// during touch(), and as the region-scoring function the reclaimer
// consults to pick a victim (spec §4.D).
package strata

import (
	"container/list"
	"sync"
)

type lfuSegment int

const (
	segWindow lfuSegment = iota
	segProbationary
	segProtected
)

type lfuEntry struct {
	keyHash uint64
	seg     lfuSegment
	elem    *list.Element
}

// evictionPolicy tracks every resident key's recency segment and feeds
// a shared count-min sketch. Segment capacities are sized as ratios of
// the current tracked population rather than a fixed upper bound,
// since the catalog's real size limit is enforced by region reclamation
// rather than by this policy evicting individual entries.
type evictionPolicy struct {
	mu sync.Mutex

	windowRatio    float64
	protectedRatio float64

	sketchEps        float64
	sketchConfidence float64
	sketch           *cmSketch

	entries   map[uint64]*lfuEntry
	window    *list.List
	probation *list.List
	protected *list.List
}

func newEvictionPolicy(cfg EvictionConfig) *evictionPolicy {
	return &evictionPolicy{
		windowRatio:      cfg.WindowCapacityRatio,
		protectedRatio:   cfg.ProtectedCapacityRatio,
		sketchEps:        cfg.CMSketchEps,
		sketchConfidence: cfg.CMSketchConfidence,
		sketch:           newCMSketch(cfg.CMSketchEps, cfg.CMSketchConfidence),
		entries:          make(map[uint64]*lfuEntry),
		window:           list.New(),
		probation:        list.New(),
		protected:        list.New(),
	}
}

// clear resets all tracking state in place — entries, every segment
// list, and the count-min sketch — so flusherPool and reclaimerPool's
// captured *evictionPolicy pointer observes the reset without a swap.
// The sketch is reallocated rather than left intact: after a Clear the
// catalog holds nothing, so any retained frequency history would bias
// admission against the store's own fresh population.
func (p *evictionPolicy) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[uint64]*lfuEntry)
	p.window = list.New()
	p.probation = list.New()
	p.protected = list.New()
	p.sketch = newCMSketch(p.sketchEps, p.sketchConfidence)
}

func (p *evictionPolicy) segList(seg lfuSegment) *list.List {
	switch seg {
	case segWindow:
		return p.window
	case segProbationary:
		return p.probation
	default:
		return p.protected
	}
}

// touch records an access (or admission) for keyHash: bumps its sketch
// frequency, inserts it into the window if new, promotes it to
// protected on a probationary hit, and runs the window/protected
// overflow logic described in spec §4.D.
func (p *evictionPolicy) touch(keyHash uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sketch.increment(keyHash)

	e, ok := p.entries[keyHash]
	if !ok {
		elem := p.window.PushFront(keyHash)
		p.entries[keyHash] = &lfuEntry{keyHash: keyHash, seg: segWindow, elem: elem}
		p.rebalanceWindowLocked()
		return
	}

	switch e.seg {
	case segWindow:
		p.window.MoveToFront(e.elem)
	case segProbationary:
		// Hit in probationary promotes to protected (spec §4.D).
		p.probation.Remove(e.elem)
		e.elem = p.protected.PushFront(keyHash)
		e.seg = segProtected
		p.rebalanceProtectedLocked()
	case segProtected:
		p.protected.MoveToFront(e.elem)
	}
}

// remove drops keyHash from LFU tracking entirely, called when the
// catalog removes or overwrites the entry.
func (p *evictionPolicy) remove(keyHash uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[keyHash]
	if !ok {
		return
	}
	p.segList(e.seg).Remove(e.elem)
	delete(p.entries, keyHash)
}

func (p *evictionPolicy) total() int {
	return len(p.entries)
}

func (p *evictionPolicy) windowCap() int {
	n := int(p.windowRatio * float64(p.total()))
	if n < 1 {
		n = 1
	}
	return n
}

func (p *evictionPolicy) protectedCap() int {
	main := p.total() - p.windowCap()
	if main < 0 {
		main = 0
	}
	n := int(p.protectedRatio * float64(main))
	if n < 1 {
		n = 1
	}
	return n
}

// rebalanceWindowLocked moves the window's LRU candidate to main when
// the window overflows its ratio-derived capacity, comparing it against
// probationary's own LRU victim by sketch frequency. The loser is
// dropped from tracking; on equal frequency the incumbent (probationary
// victim) is retained (spec §4.D tie-break).
func (p *evictionPolicy) rebalanceWindowLocked() {
	for p.window.Len() > p.windowCap() {
		back := p.window.Back()
		if back == nil {
			return
		}
		candidate := back.Value.(uint64)
		p.window.Remove(back)
		ce := p.entries[candidate]

		victimElem := p.probation.Back()
		if victimElem == nil {
			ce.seg = segProbationary
			ce.elem = p.probation.PushFront(candidate)
			continue
		}
		victim := victimElem.Value.(uint64)
		if p.sketch.estimate(candidate) > p.sketch.estimate(victim) {
			p.probation.Remove(victimElem)
			delete(p.entries, victim)
			ce.seg = segProbationary
			ce.elem = p.probation.PushFront(candidate)
		} else {
			delete(p.entries, candidate)
		}
	}
}

// rebalanceProtectedLocked demotes the LRU-protected entry back to
// probationary whenever protected exceeds its ratio-derived capacity.
func (p *evictionPolicy) rebalanceProtectedLocked() {
	for p.protected.Len() > p.protectedCap() {
		back := p.protected.Back()
		if back == nil {
			return
		}
		kh := back.Value.(uint64)
		p.protected.Remove(back)
		e := p.entries[kh]
		e.seg = segProbationary
		e.elem = p.probation.PushFront(kh)
	}
}

// scoreRegion aggregates resident entries' sketch frequency estimates
// for regionID. Chosen to sum rather than max (documented in the
// grounding ledger): summing favors reclaiming a region whose entries
// are uniformly cold over one holding a single hot key among many cold
// ones, which a max-based score would instead protect indefinitely.
func (p *evictionPolicy) scoreRegion(c *catalog, regionID int) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var score uint64
	for _, kh := range c.residentKeyHashes(regionID) {
		score += uint64(p.sketch.estimate(kh))
	}
	return score
}

// pickVictimRegion returns the lowest-scored region among candidates.
func (p *evictionPolicy) pickVictimRegion(c *catalog, candidates []*region) *region {
	if len(candidates) == 0 {
		return nil
	}
	var best *region
	var bestScore uint64
	for i, r := range candidates {
		s := p.scoreRegion(c, r.id)
		if i == 0 || s < bestScore {
			best = r
			bestScore = s
		}
	}
	return best
}
