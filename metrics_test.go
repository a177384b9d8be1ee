package strata

import "testing"

func TestMetricsSnapshotReflectsCounters(t *testing.T) {
	m := &Metrics{}
	m.OpBytesFlush.Add(10)
	m.InsertAccepted.Add(2)
	m.EntriesDropped.Add(1)

	snap := m.snapshot()
	if snap.OpBytesFlush != 10 || snap.InsertAccepted != 2 || snap.EntriesDropped != 1 {
		t.Errorf("snapshot = %+v, want OpBytesFlush=10 InsertAccepted=2 EntriesDropped=1", snap)
	}
}
