// The in-memory catalog maps a key hash to where its value lives on the
// arena. It is sharded so lookups and inserts for unrelated keys never
// contend on the same mutex, the same sharding shape folio applies to
// its in-memory index but keyed here by the xxh3 hash of the caller's
// encoded key rather than a full key string (spec §4.C).
package strata

import "sync"

// catalogEntry wraps a descriptor with the reclaim-in-flight flag
// drain_region uses to let concurrent lookups keep serving a region
// that is being drained.
type catalogEntry struct {
	desc      EntryDescriptor
	reclaimed bool
}

type catalogShard struct {
	mu      sync.RWMutex
	entries map[uint64]*catalogEntry
	// byRegion indexes resident key hashes per region so drain_region and
	// eviction region-scoring don't need a full shard scan (spec §4.C
	// invariant 3).
	byRegion map[int]map[uint64]struct{}
}

// catalog is the full sharded index: 2^catalogBits independently locked
// shards selected by the high bits of the key hash.
type catalog struct {
	bits   int
	shards []*catalogShard
}

func newCatalog(bits int) *catalog {
	n := 1 << bits
	c := &catalog{bits: bits, shards: make([]*catalogShard, n)}
	for i := range c.shards {
		c.shards[i] = &catalogShard{
			entries:  make(map[uint64]*catalogEntry),
			byRegion: make(map[int]map[uint64]struct{}),
		}
	}
	return c
}

func (c *catalog) shardFor(keyHash uint64) *catalogShard {
	return c.shards[shardIndex(keyHash, c.bits)]
}

// insert applies spec §4.C's stale-write rule: a descriptor with a
// strictly greater existing sequence number wins over the incoming one.
// Returns true if the insert was applied.
func (c *catalog) insert(keyHash uint64, desc EntryDescriptor) bool {
	s := c.shardFor(keyHash)
	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.entries[keyHash]; ok {
		if prior.desc.Sequence > desc.Sequence {
			return false
		}
		s.removeFromRegionLocked(prior.desc.RegionID, keyHash)
	}
	s.entries[keyHash] = &catalogEntry{desc: desc}
	s.addToRegionLocked(desc.RegionID, keyHash)
	return true
}

func (c *catalog) lookup(keyHash uint64) (EntryDescriptor, bool) {
	s := c.shardFor(keyHash)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[keyHash]
	if !ok {
		return EntryDescriptor{}, false
	}
	return e.desc, true
}

func (c *catalog) remove(keyHash uint64) (EntryDescriptor, bool) {
	s := c.shardFor(keyHash)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[keyHash]
	if !ok {
		return EntryDescriptor{}, false
	}
	delete(s.entries, keyHash)
	s.removeFromRegionLocked(e.desc.RegionID, keyHash)
	return e.desc, true
}

func (c *catalog) exists(keyHash uint64) bool {
	_, ok := c.lookup(keyHash)
	return ok
}

// drainRegion returns a snapshot of every (keyHash, descriptor) resident
// in regionID and marks each entry reclaimed so lookups keep serving it
// until the reclaimer either reinserts it (fresh descriptor, new region)
// or the region is erased (spec §4.C).
func (c *catalog) drainRegion(regionID int) []EntryDescriptor {
	var out []EntryDescriptor
	for _, s := range c.shards {
		s.mu.Lock()
		keys, ok := s.byRegion[regionID]
		if ok {
			for kh := range keys {
				if e, ok := s.entries[kh]; ok {
					e.reclaimed = true
					out = append(out, e.desc)
				}
			}
		}
		s.mu.Unlock()
	}
	return out
}

// removeIfStillIn drops a descriptor only if it still points at
// regionID, used by the reclaimer after erase so a concurrently
// reinserted (newer-region) descriptor for the same key isn't clobbered.
func (c *catalog) removeIfStillIn(keyHash uint64, regionID int) {
	s := c.shardFor(keyHash)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[keyHash]; ok && e.desc.RegionID == regionID {
		delete(s.entries, keyHash)
		s.removeFromRegionLocked(regionID, keyHash)
	}
}

// clear empties every shard in place. Store.Clear relies on this
// rather than swapping in a fresh *catalog, since flusherPool and
// reclaimerPool hold onto the original pointer for the store's
// lifetime and would otherwise keep publishing into an orphaned index.
func (c *catalog) clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.entries = make(map[uint64]*catalogEntry)
		s.byRegion = make(map[int]map[uint64]struct{})
		s.mu.Unlock()
	}
}

// residentKeyHashes returns the key hashes currently attributed to
// regionID, used by the eviction policy's region scorer (spec §4.D).
func (c *catalog) residentKeyHashes(regionID int) []uint64 {
	var out []uint64
	for _, s := range c.shards {
		s.mu.RLock()
		for kh := range s.byRegion[regionID] {
			out = append(out, kh)
		}
		s.mu.RUnlock()
	}
	return out
}

func (s *catalogShard) addToRegionLocked(regionID int, keyHash uint64) {
	set, ok := s.byRegion[regionID]
	if !ok {
		set = make(map[uint64]struct{})
		s.byRegion[regionID] = set
	}
	set[keyHash] = struct{}{}
}

func (s *catalogShard) removeFromRegionLocked(regionID int, keyHash uint64) {
	if set, ok := s.byRegion[regionID]; ok {
		delete(set, keyHash)
		if len(set) == 0 {
			delete(s.byRegion, regionID)
		}
	}
}
