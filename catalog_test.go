// Catalog insert/lookup/stale-write tests.
package strata

import "testing"

func TestCatalogInsertAndLookup(t *testing.T) {
	c := newCatalog(4)
	desc := EntryDescriptor{RegionID: 1, Offset: 0, Sequence: 1, KeyHash: 42}
	if ok := c.insert(42, desc); !ok {
		t.Fatal("insert of a new key returned false")
	}
	got, ok := c.lookup(42)
	if !ok {
		t.Fatal("lookup after insert missed")
	}
	if got != desc {
		t.Errorf("lookup = %+v, want %+v", got, desc)
	}
}

func TestCatalogInsertRejectsStaleSequence(t *testing.T) {
	c := newCatalog(4)
	c.insert(42, EntryDescriptor{RegionID: 1, Sequence: 5, KeyHash: 42})
	ok := c.insert(42, EntryDescriptor{RegionID: 2, Sequence: 3, KeyHash: 42})
	if ok {
		t.Fatal("insert with a lower sequence number was accepted")
	}
	got, _ := c.lookup(42)
	if got.RegionID != 1 || got.Sequence != 5 {
		t.Errorf("lookup after rejected stale insert = %+v, want region 1 seq 5", got)
	}
}

func TestCatalogInsertAcceptsNewerSequence(t *testing.T) {
	c := newCatalog(4)
	c.insert(42, EntryDescriptor{RegionID: 1, Sequence: 3, KeyHash: 42})
	ok := c.insert(42, EntryDescriptor{RegionID: 2, Sequence: 5, KeyHash: 42})
	if !ok {
		t.Fatal("insert with a higher sequence number was rejected")
	}
	got, _ := c.lookup(42)
	if got.RegionID != 2 {
		t.Errorf("lookup after newer insert = region %d, want 2", got.RegionID)
	}
}

func TestCatalogRemove(t *testing.T) {
	c := newCatalog(4)
	c.insert(1, EntryDescriptor{RegionID: 0, KeyHash: 1})
	if _, ok := c.remove(1); !ok {
		t.Fatal("remove of an existing key returned false")
	}
	if c.exists(1) {
		t.Error("exists returned true after remove")
	}
	if _, ok := c.remove(1); ok {
		t.Error("remove of an already-removed key returned true")
	}
}

func TestCatalogDrainRegionMarksReclaimedAndSnapshots(t *testing.T) {
	c := newCatalog(4)
	c.insert(1, EntryDescriptor{RegionID: 7, KeyHash: 1})
	c.insert(2, EntryDescriptor{RegionID: 7, KeyHash: 2})
	c.insert(3, EntryDescriptor{RegionID: 8, KeyHash: 3})

	drained := c.drainRegion(7)
	if len(drained) != 2 {
		t.Fatalf("drainRegion(7) returned %d entries, want 2", len(drained))
	}

	// Entries are still visible to lookups until removeIfStillIn or a
	// fresh insert supersedes them.
	if !c.exists(1) || !c.exists(2) {
		t.Error("drainRegion removed entries instead of only snapshotting them")
	}
	if !c.exists(3) {
		t.Error("drainRegion touched a region it wasn't asked to drain")
	}
}

func TestCatalogRemoveIfStillInGuardsAgainstReinsert(t *testing.T) {
	c := newCatalog(4)
	c.insert(1, EntryDescriptor{RegionID: 7, KeyHash: 1, Sequence: 1})
	c.drainRegion(7)

	// Reclaimer reinserts the key into a new region before erase runs.
	c.insert(1, EntryDescriptor{RegionID: 9, KeyHash: 1, Sequence: 2})

	// removeIfStillIn(1, 7) must be a no-op: the descriptor now points at
	// region 9, not the erased region 7.
	c.removeIfStillIn(1, 7)
	got, ok := c.lookup(1)
	if !ok {
		t.Fatal("removeIfStillIn clobbered a reinserted descriptor")
	}
	if got.RegionID != 9 {
		t.Errorf("lookup after guarded remove = region %d, want 9", got.RegionID)
	}
}

func TestCatalogResidentKeyHashes(t *testing.T) {
	c := newCatalog(4)
	c.insert(1, EntryDescriptor{RegionID: 3, KeyHash: 1})
	c.insert(2, EntryDescriptor{RegionID: 3, KeyHash: 2})
	c.insert(3, EntryDescriptor{RegionID: 4, KeyHash: 3})

	resident := c.residentKeyHashes(3)
	if len(resident) != 2 {
		t.Fatalf("residentKeyHashes(3) = %v, want 2 entries", resident)
	}
}

func TestCatalogRemoveClearsRegionIndex(t *testing.T) {
	c := newCatalog(4)
	c.insert(1, EntryDescriptor{RegionID: 3, KeyHash: 1})
	c.remove(1)
	if resident := c.residentKeyHashes(3); len(resident) != 0 {
		t.Errorf("residentKeyHashes after remove = %v, want empty", resident)
	}
}

func TestCatalogClearEmptiesInPlace(t *testing.T) {
	c := newCatalog(4)
	c.insert(1, EntryDescriptor{RegionID: 3, KeyHash: 1})
	c.insert(2, EntryDescriptor{RegionID: 3, KeyHash: 2})

	c.clear()

	if _, ok := c.lookup(1); ok {
		t.Error("lookup found a descriptor after clear")
	}
	if resident := c.residentKeyHashes(3); len(resident) != 0 {
		t.Errorf("residentKeyHashes after clear = %v, want empty", resident)
	}
	// clear() must mutate the existing shards, not allocate a new
	// catalog, so callers holding this *catalog keep seeing the reset.
	if ok := c.insert(5, EntryDescriptor{RegionID: 0, KeyHash: 5}); !ok {
		t.Fatal("insert after clear rejected")
	}
	if _, ok := c.lookup(5); !ok {
		t.Fatal("lookup after clear+insert missed")
	}
}
