// Flusher pool: N workers, each owning one Writable region at a time,
// draining an insert queue into aligned batches and publishing to the
// catalog only once the device write durably succeeds (spec §4.H).
package strata

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// insertRequest is one pending (key, value) destined for a flusher.
type insertRequest struct {
	keyHash         uint64
	key             []byte
	compressedValue []byte
	uncompressedLen uint32
	compression     CompressionKind
	done            func(inserted bool, err error)
}

type flusherPool struct {
	cfg     *Config
	dev     *device
	rm      *regionManager
	cat     *catalog
	evict   *evictionPolicy
	metrics *Metrics
	log     *zap.Logger

	sequence atomic.Uint64

	reqCh  chan insertRequest
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newFlusherPool(cfg *Config, dev *device, rm *regionManager, cat *catalog, evict *evictionPolicy, metrics *Metrics) *flusherPool {
	return &flusherPool{
		cfg:     cfg,
		dev:     dev,
		rm:      rm,
		cat:     cat,
		evict:   evict,
		metrics: metrics,
		log:     cfg.Logger,
		reqCh:   make(chan insertRequest, cfg.Flushers*4),
		stopCh:  make(chan struct{}),
	}
}

func (p *flusherPool) start() {
	for i := 0; i < p.cfg.Flushers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

func (p *flusherPool) stop() {
	close(p.stopCh)
	p.wg.Wait()
}

// submit enqueues a request, blocking until accepted or ctx is done.
func (p *flusherPool) submit(ctx context.Context, req insertRequest) error {
	select {
	case p.reqCh <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return ErrClosed
	}
}

// flusherState is the per-worker mutable state: its current owned
// region and in-progress batch.
type flusherState struct {
	region *region
	batch  *batch
}

func (p *flusherPool) run(id int) {
	defer p.wg.Done()
	ctx := context.Background()

	st := &flusherState{
		batch: newBatch(p.cfg.IOSize, p.cfg.Align, 5*time.Millisecond),
	}
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			p.flushPending(ctx, st)
			return
		case req := <-p.reqCh:
			p.handle(ctx, st, req)
		case <-ticker.C:
			if st.batch.ready() {
				p.flushPending(ctx, st)
			}
		}
	}
}

func (p *flusherPool) handle(ctx context.Context, st *flusherState, req insertRequest) {
	seq := p.sequence.Add(1)
	framed := encodeEntry(entryHeader{
		Version:         entryVersion,
		Sequence:        seq,
		KeyHash:         req.keyHash,
		Compression:     req.compression,
		UncompressedLen: req.uncompressedLen,
	}, req.key, req.compressedValue, p.cfg.Align)

	pe := pendingEntry{
		header:          entryHeader{Sequence: seq, KeyHash: req.keyHash, Compression: req.compression, UncompressedLen: req.uncompressedLen},
		framed:          framed,
		keyHash:         req.keyHash,
		compressedLen:   uint32(len(req.compressedValue)),
		uncompressedLen: req.uncompressedLen,
		compression:     req.compression,
		done:            req.done,
	}

	for {
		if st.region == nil {
			r, err := p.rm.acquireWritable(ctx)
			if err != nil {
				req.done(false, err)
				return
			}
			st.region = r
		}

		if int64(len(framed)) > p.cfg.RegionSize {
			req.done(false, ErrEntryTooLarge)
			return
		}

		remaining := st.region.remaining(p.cfg.RegionSize)
		switch st.batch.push(pe, remaining) {
		case pushAccepted:
			if st.batch.ready() {
				p.flushPending(ctx, st)
			}
			return
		case pushRotateAndRetry:
			p.flushPending(ctx, st)
			if st.region != nil && int64(len(framed)) > st.region.remaining(p.cfg.RegionSize) {
				p.rotateRegion(st)
			}
		}
	}
}

// flushPending closes the current batch (if non-empty) and writes it,
// publishing descriptors for every entry on success.
func (p *flusherPool) flushPending(ctx context.Context, st *flusherState) {
	if st.batch.empty() || st.region == nil {
		return
	}
	buf, entries := st.batch.close()
	offset := st.region.writeOffset

	if err := p.dev.write(ctx, st.region.id, offset, buf); err != nil {
		p.log.Warn("flush failed, poisoning region", zap.Int("region", st.region.id), zap.Error(err))
		p.metrics.FlushFailed.Add(uint64(len(entries)))
		for _, e := range entries {
			e.done(false, err)
		}
		p.rm.poisonRegion(st.region)
		st.region = nil
		return
	}

	st.region.writeOffset += int64(len(buf))

	cursor := offset
	for _, e := range entries {
		desc := EntryDescriptor{
			RegionID:        st.region.id,
			Offset:          cursor,
			CompressedLen:   e.compressedLen,
			UncompressedLen: e.uncompressedLen,
			Compression:     e.compression,
			Sequence:        e.header.Sequence,
			KeyHash:         e.keyHash,
			FramedLen:       uint32(len(e.framed)),
		}
		cursor += int64(len(e.framed))

		p.cat.insert(e.keyHash, desc)
		p.evict.touch(e.keyHash)
		p.metrics.OpBytesFlush.Add(uint64(len(e.framed)))
		p.metrics.InsertAccepted.Add(1)
		e.done(true, nil)
	}
}

// rotateRegion closes out the current region (Full → Evictable) and
// clears the worker's handle so the next handle() call acquires a
// fresh Writable region.
func (p *flusherPool) rotateRegion(st *flusherState) {
	if st.region == nil {
		return
	}
	p.rm.markFull(st.region)
	p.rm.markEvictable(st.region)
	st.region = nil
}
