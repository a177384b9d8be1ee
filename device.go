// The region-structured device: one file per region, opened for aligned,
// unbuffered I/O. Fixing alignment here lets the flusher coalesce many
// entries into a single large write and lets a reader fetch an entry's
// full footprint in one I/O (spec §4.A).
//
// Each region file is opened with github.com/ncw/directio, which applies
// the OS-specific O_DIRECT-equivalent flags so reads and writes bypass
// the page cache — appropriate for a cache that is itself the thing
// managing what's hot, mirroring how SharedCode-sop's fs.DirectIO wraps
// directio.OpenFile for its own block-aligned segment files. Transient
// I/O failures are retried with go-retry's Fibonacci backoff before
// surfacing ErrIO, the same retry discipline SharedCode-sop applies
// around its direct I/O calls.
package strata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ncw/directio"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// device owns one *os.File per region and enforces the alignment
// contract from spec §4.A.
type device struct {
	dir   string
	align int
	size  int64 // region_size
	log   *zap.Logger

	mu    sync.Mutex
	files map[int]*os.File
}

func newDevice(dir string, align int, regionSize int64, log *zap.Logger) *device {
	return &device{
		dir:   dir,
		align: align,
		size:  regionSize,
		log:   log,
		files: make(map[int]*os.File),
	}
}

// regionFileName returns the deterministic filename for a region id, per
// spec §6 ("named deterministically from region_id").
func regionFileName(id int) string {
	return fmt.Sprintf("region-%010d.strata", id)
}

func regionPath(dir string, id int) string {
	return filepath.Join(dir, regionFileName(id))
}

// open returns the open file handle for region id, opening and
// preallocating it to exactly region_size on first use (spec §6: "size
// exactly region_size").
func (d *device) open(id int) (*os.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if f, ok := d.files[id]; ok {
		return f, nil
	}

	path := regionPath(d.dir, id)
	existed := true
	if _, err := os.Stat(path); os.IsNotExist(err) {
		existed = false
	}

	f, err := directio.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: open region %d: %v", ErrIO, id, err)
	}
	if !existed {
		if err := f.Truncate(d.size); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: preallocate region %d: %v", ErrIO, id, err)
		}
	}
	d.files[id] = f
	return f, nil
}

// validateAlignment enforces the Device contract (spec §4.A): offset and
// len must both be multiples of align.
func (d *device) validateAlignment(offset int64, length int) error {
	if offset%int64(d.align) != 0 || length%d.align != 0 {
		return ErrIOAlignment
	}
	return nil
}

// read fetches len bytes from region id at offset into a freshly
// allocated aligned buffer, retrying transient failures.
func (d *device) read(ctx context.Context, id int, offset int64, length int) ([]byte, error) {
	if err := d.validateAlignment(offset, length); err != nil {
		return nil, err
	}
	f, err := d.open(id)
	if err != nil {
		return nil, err
	}

	buf := directio.AlignedBlock(length)
	err = d.retry(ctx, func(ctx context.Context) error {
		_, e := f.ReadAt(buf, offset)
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read region %d @%d: %v", ErrIO, id, offset, err)
	}
	return buf, nil
}

// write issues an aligned write of data (len(data) % align == 0) to
// region id at offset.
func (d *device) write(ctx context.Context, id int, offset int64, data []byte) error {
	if err := d.validateAlignment(offset, len(data)); err != nil {
		return err
	}
	f, err := d.open(id)
	if err != nil {
		return err
	}

	err = d.retry(ctx, func(ctx context.Context) error {
		_, e := f.WriteAt(data, offset)
		return e
	})
	if err != nil {
		d.log.Warn("device write failed", zap.Int("region", id), zap.Int64("offset", offset), zap.Error(err))
		return fmt.Errorf("%w: write region %d @%d: %v", ErrIO, id, offset, err)
	}
	return nil
}

// sync flushes dirty buffers for region id to stable storage.
func (d *device) sync(id int) error {
	d.mu.Lock()
	f, ok := d.files[id]
	d.mu.Unlock()
	if !ok {
		return nil
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync region %d: %v", ErrIO, id, err)
	}
	return nil
}

// erase resets a region's logical contents so subsequent reads of
// unwritten ranges produce deterministic zeros (spec §4.A). Direct I/O
// files can't rely on sparse hole-punching portably, so erase
// rewrite-zeroes the whole region.
func (d *device) erase(ctx context.Context, id int) error {
	f, err := d.open(id)
	if err != nil {
		return err
	}

	zero := directio.AlignedBlock(d.align)
	chunks := int(d.size / int64(d.align))
	for i := 0; i < chunks; i++ {
		offset := int64(i) * int64(d.align)
		if err := d.retry(ctx, func(ctx context.Context) error {
			_, e := f.WriteAt(zero, offset)
			return e
		}); err != nil {
			return fmt.Errorf("%w: erase region %d @%d: %v", ErrIO, id, offset, err)
		}
	}
	return f.Sync()
}

// close releases every open region file handle.
func (d *device) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var first error
	for id, f := range d.files {
		if err := f.Close(); err != nil && first == nil {
			first = fmt.Errorf("%w: close region %d: %v", ErrIO, id, err)
		}
		delete(d.files, id)
	}
	return first
}

// retry wraps op with a bounded Fibonacci backoff for transient I/O
// errors, the same pattern SharedCode-sop's fs.fileio uses around its
// direct I/O calls.
func (d *device) retry(ctx context.Context, op func(context.Context) error) error {
	b := retry.NewFibonacci(10 * time.Millisecond)
	b = retry.WithMaxRetries(3, b)
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := op(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
