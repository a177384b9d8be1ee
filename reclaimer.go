// Reclaimer pool: M workers that free Evictable regions by draining
// their resident entries, consulting the reinsertion policy, erasing
// the region, and returning it to the clean pool (spec §4.I).
package strata

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type reclaimerPool struct {
	cfg         *Config
	dev         *device
	rm          *regionManager
	cat         *catalog
	evict       *evictionPolicy
	reinsertion ReinsertionPolicy
	flushers    *flusherPool
	metrics     *Metrics
	log         *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup

	// reinsertWG tracks in-flight reinsertAsync goroutines, separately
	// from wg's worker loops, so stop() can drain them without waiting
	// on run() goroutines that already returned.
	reinsertWG sync.WaitGroup
}

// reinsertJob is a resident entry read off disk during reclaim, pending
// reinsertion once the region it came from has been erased.
type reinsertJob struct {
	keyHash         uint64
	key             []byte
	value           []byte
	uncompressedLen uint32
	compression     CompressionKind
}

func newReclaimerPool(cfg *Config, dev *device, rm *regionManager, cat *catalog, evict *evictionPolicy, reinsertion ReinsertionPolicy, flushers *flusherPool, metrics *Metrics) *reclaimerPool {
	return &reclaimerPool{
		cfg:         cfg,
		dev:         dev,
		rm:          rm,
		cat:         cat,
		evict:       evict,
		reinsertion: reinsertion,
		flushers:    flushers,
		metrics:     metrics,
		log:         cfg.Logger,
		stopCh:      make(chan struct{}),
	}
}

func (p *reclaimerPool) start() {
	for i := 0; i < p.cfg.Reclaimers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

func (p *reclaimerPool) stop() {
	close(p.stopCh)
	p.wg.Wait()
	p.reinsertWG.Wait()
}

func (p *reclaimerPool) run(id int) {
	defer p.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		if err := p.rm.waitBelowThreshold(ctx); err != nil {
			return
		}

		victim, err := p.rm.acquireEvictable(ctx, func(candidates []*region) *region {
			return p.evict.pickVictimRegion(p.cat, candidates)
		})
		if err != nil {
			return
		}

		p.reclaim(ctx, victim)
	}
}

// reclaim implements spec §4.I steps 4–6 for a region already
// transitioned to Reclaiming. Entries kept by the reinsertion policy
// are read into memory and reinserted only after the region is erased
// and handed back clean: reinserting synchronously before erase would
// mean a reclaimer can sit blocked waiting for the flusher to publish,
// while the flusher itself waits on acquireWritable for a clean region
// that only this reclaimer's own erase could supply — a deadlock under
// clean-region pressure with a non-default reinsertion policy.
func (p *reclaimerPool) reclaim(ctx context.Context, r *region) {
	descriptors := p.cat.drainRegion(r.id)

	jobs := make([]reinsertJob, 0, len(descriptors))
	for _, desc := range descriptors {
		job, ok := p.prepareReinsert(ctx, r, desc)
		if !ok {
			continue
		}
		jobs = append(jobs, job)
	}

	p.rm.beginErase(r)
	if err := p.dev.erase(ctx, r.id); err != nil {
		p.log.Warn("erase failed, poisoning region", zap.Int("region", r.id), zap.Error(err))
		p.rm.finishErase(r, false)
		return
	}
	p.rm.finishErase(r, true)

	for _, job := range jobs {
		p.reinsertWG.Add(1)
		go p.reinsertAsync(r.id, job)
	}
}

// prepareReinsert judges and reads one resident entry ahead of erase.
// Entries the policy drops, or that fail to read/decode, are removed
// from the catalog immediately; everything else is copied into memory
// so the region bytes can be erased without losing it.
func (p *reclaimerPool) prepareReinsert(ctx context.Context, r *region, desc EntryDescriptor) (reinsertJob, bool) {
	drop := func() (reinsertJob, bool) {
		p.cat.removeIfStillIn(desc.KeyHash, r.id)
		p.evict.remove(desc.KeyHash)
		p.metrics.EntriesDropped.Add(1)
		return reinsertJob{}, false
	}

	if !p.reinsertion.Judge(desc.KeyHash, int(desc.CompressedLen)) {
		return drop()
	}

	raw, err := p.dev.read(ctx, r.id, desc.Offset, int(desc.FramedLen))
	if err != nil {
		p.log.Warn("reinsert read failed, dropping", zap.Uint64("key_hash", desc.KeyHash), zap.Error(err))
		return drop()
	}

	_, key, value, _, err := decodeEntry(raw)
	if err != nil {
		p.log.Warn("reinsert decode failed, dropping", zap.Uint64("key_hash", desc.KeyHash), zap.Error(err))
		return drop()
	}

	return reinsertJob{
		keyHash:         desc.KeyHash,
		key:             append([]byte(nil), key...),
		value:           append([]byte(nil), value...),
		uncompressedLen: desc.UncompressedLen,
		compression:     desc.Compression,
	}, true
}

// reinsertAsync submits a previously drained entry to the flusher
// without the reclaim loop waiting on it, so the worker that freed
// drainedFrom is immediately available to pick its next victim.
func (p *reclaimerPool) reinsertAsync(drainedFrom int, job reinsertJob) {
	defer p.reinsertWG.Done()
	ctx := context.Background()

	done := make(chan struct{})
	req := insertRequest{
		keyHash:         job.keyHash,
		key:             job.key,
		compressedValue: job.value,
		uncompressedLen: job.uncompressedLen,
		compression:     job.compression,
		done: func(inserted bool, err error) {
			close(done)
		},
	}
	if err := p.flushers.submit(ctx, req); err != nil {
		p.cat.removeIfStillIn(job.keyHash, drainedFrom)
		p.evict.remove(job.keyHash)
		p.metrics.EntriesDropped.Add(1)
		return
	}
	<-done
	p.cat.removeIfStillIn(job.keyHash, drainedFrom)
	p.metrics.EntriesReinserted.Add(1)
}
