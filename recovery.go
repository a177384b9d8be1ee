// Open-time recovery: scan every region file forward, validating each
// entry's header and checksum, and rebuild the catalog before any
// flusher or reclaimer starts. Scans are independent per region and
// parallelized up to recover_concurrency with errgroup (spec §4.J,
// §9), the same fan-out shape SharedCode-sop and SeleniaProject-Orizon
// both pull golang.org/x/sync/errgroup in for.
package strata

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// recoverStore scans every region, truncating at the first invalid
// entry tail (append-log semantics), and publishes every valid entry
// into cat using its on-disk sequence. Every recovered region with any
// data ends up Evictable, never Writable — flushers always start from
// a fresh Clean region (spec §4.J step 3).
func recoverStore(ctx context.Context, dev *device, rm *regionManager, cat *catalog, evict *evictionPolicy, cfg *Config) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.RecoverConcurrency)

	for _, r := range rm.regions {
		r := r
		g.Go(func() error {
			return recoverRegion(ctx, dev, cat, evict, cfg, r)
		})
	}
	return g.Wait()
}

func recoverRegion(ctx context.Context, dev *device, cat *catalog, evict *evictionPolicy, cfg *Config, r *region) error {
	chunk := alignUp(cfg.IOSize, cfg.Align)
	var offset int64
	need := 0 // framed length of an entry that ran past the previous chunk

	for offset < cfg.RegionSize {
		readLen := chunk
		if need > readLen {
			readLen = need
		}
		need = 0
		if remaining := cfg.RegionSize - offset; int64(readLen) > remaining {
			readLen = int(remaining)
		}
		raw, err := dev.read(ctx, r.id, offset, readLen)
		if err != nil {
			break
		}

		pos := 0
		progressed := false
		for pos+minEntrySize <= len(raw) {
			h, err := decodeHeader(raw[pos:])
			if err != nil {
				break
			}
			total := headerSize + int(h.KeyLen) + int(h.ValueLen) + checksumSize
			framedLen := alignUp(total, cfg.Align)
			if pos+framedLen > len(raw) {
				need = framedLen
				break
			}
			_, _, value, _, err := decodeEntry(raw[pos : pos+total])
			if err != nil {
				break
			}

			kh := h.KeyHash
			desc := EntryDescriptor{
				RegionID:        r.id,
				Offset:          offset + int64(pos),
				CompressedLen:   uint32(len(value)),
				UncompressedLen: h.UncompressedLen,
				Compression:     h.Compression,
				Sequence:        h.Sequence,
				KeyHash:         kh,
				FramedLen:       uint32(framedLen),
			}
			if cat.insert(kh, desc) {
				evict.touch(kh)
			}

			pos += framedLen
			progressed = true
			r.writeOffset = offset + int64(pos)
		}

		if need > 0 && offset+int64(pos)+int64(need) <= cfg.RegionSize {
			// The next entry runs past this chunk: re-read from its start
			// with a length that covers it.
			offset += int64(pos)
			continue
		}
		if !progressed || pos < len(raw) {
			// Either nothing valid was found in this chunk or we stopped
			// mid-chunk on a bad header/checksum: the region's true tail is
			// write_offset as set above, so stop scanning further chunks.
			break
		}
		offset += int64(pos)
	}

	if r.writeOffset > 0 {
		r.state = regionEvictable
	}
	return nil
}
