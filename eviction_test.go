// W-TinyLFU eviction policy tests.
package strata

import "testing"

func defaultEvictionConfig() EvictionConfig {
	cfg := EvictionConfig{}
	cfg.setDefaults()
	return cfg
}

func TestTouchNewKeyEntersWindow(t *testing.T) {
	p := newEvictionPolicy(defaultEvictionConfig())
	p.touch(1)
	e, ok := p.entries[1]
	if !ok {
		t.Fatal("touch did not track the new key")
	}
	if e.seg != segWindow {
		t.Errorf("new key segment = %v, want segWindow", e.seg)
	}
}

func TestTouchProbationaryHitPromotesToProtected(t *testing.T) {
	p := newEvictionPolicy(defaultEvictionConfig())
	// Force enough distinct keys through the window that one gets pushed
	// down into probationary.
	for i := uint64(1); i <= 50; i++ {
		p.touch(i)
	}
	var probationaryKey uint64
	found := false
	for kh, e := range p.entries {
		if e.seg == segProbationary {
			probationaryKey = kh
			found = true
			break
		}
	}
	if !found {
		t.Fatal("no key reached the probationary segment after 50 distinct touches")
	}

	p.touch(probationaryKey)
	if p.entries[probationaryKey].seg != segProtected {
		t.Errorf("segment after a probationary hit = %v, want segProtected", p.entries[probationaryKey].seg)
	}
}

func TestRemoveDropsTracking(t *testing.T) {
	p := newEvictionPolicy(defaultEvictionConfig())
	p.touch(5)
	p.remove(5)
	if _, ok := p.entries[5]; ok {
		t.Error("entry still tracked after remove")
	}
	if p.total() != 0 {
		t.Errorf("total = %d, want 0", p.total())
	}
}

func TestEvictionClearResetsInPlace(t *testing.T) {
	p := newEvictionPolicy(defaultEvictionConfig())
	p.touch(5)
	p.touch(6)

	p.clear()

	if p.total() != 0 {
		t.Errorf("total after clear = %d, want 0", p.total())
	}
	if p.window.Len() != 0 || p.probation.Len() != 0 || p.protected.Len() != 0 {
		t.Error("segment lists not empty after clear")
	}
	// clear() must mutate the existing policy in place, not allocate a
	// new one, so callers holding this *evictionPolicy keep seeing it.
	p.touch(7)
	if _, ok := p.entries[7]; !ok {
		t.Fatal("touch after clear did not track the new key")
	}
}

func TestWindowCapGrowsWithPopulation(t *testing.T) {
	p := newEvictionPolicy(defaultEvictionConfig())
	for i := uint64(0); i < 10; i++ {
		p.touch(i)
	}
	cap1 := p.windowCap()
	for i := uint64(10); i < 100; i++ {
		p.touch(i)
	}
	cap2 := p.windowCap()
	if cap2 <= cap1 {
		t.Errorf("windowCap did not grow with population: %d (n=10) vs %d (n=100)", cap1, cap2)
	}
}

func TestScoreRegionSumsResidentEstimates(t *testing.T) {
	p := newEvictionPolicy(defaultEvictionConfig())
	c := newCatalog(2)
	c.insert(1, EntryDescriptor{RegionID: 1, KeyHash: 1})
	c.insert(2, EntryDescriptor{RegionID: 1, KeyHash: 2})

	p.touch(1)
	p.touch(1)
	p.touch(2)

	score := p.scoreRegion(c, 1)
	e1, e2 := p.sketch.estimate(1), p.sketch.estimate(2)
	if score != uint64(e1)+uint64(e2) {
		t.Errorf("scoreRegion = %d, want sum %d+%d", score, e1, e2)
	}
}

func TestPickVictimRegionPrefersLowestScore(t *testing.T) {
	p := newEvictionPolicy(defaultEvictionConfig())
	c := newCatalog(2)
	c.insert(1, EntryDescriptor{RegionID: 10, KeyHash: 1})
	c.insert(2, EntryDescriptor{RegionID: 20, KeyHash: 2})

	// Region 20's key gets touched many times (hot); region 10's key is
	// untouched (cold) and should be picked for reclamation.
	for i := 0; i < 20; i++ {
		p.touch(2)
	}

	hot := &region{id: 20}
	cold := &region{id: 10}
	victim := p.pickVictimRegion(c, []*region{hot, cold})
	if victim != cold {
		t.Errorf("pickVictimRegion chose region %d, want the cold region %d", victim.id, cold.id)
	}
}

func TestPickVictimRegionEmptyCandidates(t *testing.T) {
	p := newEvictionPolicy(defaultEvictionConfig())
	if got := p.pickVictimRegion(newCatalog(2), nil); got != nil {
		t.Errorf("pickVictimRegion on empty candidates = %v, want nil", got)
	}
}
