package strata

import "sync/atomic"

// Metrics collects the counters spec §7 calls out as separating error
// kinds, plus the observed flush throughput the admission policy reads
// from. Every field is updated with atomics so no component needs to
// hold a lock across a device I/O to report progress (spec §5).
type Metrics struct {
	// OpBytesFlush is the cumulative number of framed entry bytes
	// (header, key, value, checksum and padding) durably written by
	// flushers. RatedTicketAdmission samples the delta of this counter to
	// drive its token bucket (spec §4.E).
	OpBytesFlush atomic.Uint64

	GetMiss        atomic.Uint64
	InsertAccepted atomic.Uint64
	InsertRejected atomic.Uint64
	FlushFailed    atomic.Uint64
	ReclaimFailed  atomic.Uint64

	RegionsReclaimed  atomic.Uint64
	EntriesReinserted atomic.Uint64
	EntriesDropped    atomic.Uint64
}

// snapshot is a point-in-time copy, used by tests and by policies that
// want a consistent read of several counters.
type metricsSnapshot struct {
	OpBytesFlush      uint64
	GetMiss           uint64
	InsertAccepted    uint64
	InsertRejected    uint64
	FlushFailed       uint64
	ReclaimFailed     uint64
	RegionsReclaimed  uint64
	EntriesReinserted uint64
	EntriesDropped    uint64
}

func (m *Metrics) snapshot() metricsSnapshot {
	return metricsSnapshot{
		OpBytesFlush:      m.OpBytesFlush.Load(),
		GetMiss:           m.GetMiss.Load(),
		InsertAccepted:    m.InsertAccepted.Load(),
		InsertRejected:    m.InsertRejected.Load(),
		FlushFailed:       m.FlushFailed.Load(),
		ReclaimFailed:     m.ReclaimFailed.Load(),
		RegionsReclaimed:  m.RegionsReclaimed.Load(),
		EntriesReinserted: m.EntriesReinserted.Load(),
		EntriesDropped:    m.EntriesDropped.Load(),
	}
}
