package strata

import (
	"fmt"

	"go.uber.org/zap"
)

// CompressionKind selects the byte-level transform applied to values
// before they are written to a region. Compression is treated as an
// opaque transform (spec §1): strata never inspects compressed bytes.
type CompressionKind uint8

const (
	CompressionNone CompressionKind = iota
	CompressionZstd
)

// EvictionConfig configures the W-TinyLFU in-memory eviction policy.
type EvictionConfig struct {
	// WindowCapacityRatio is the fraction of tracked entries kept in the
	// recency window segment. Default 0.1.
	WindowCapacityRatio float64
	// ProtectedCapacityRatio is the fraction of the main segment (window
	// excluded) kept in the protected segment. Default 0.8.
	ProtectedCapacityRatio float64
	// CMSketchEps is the count-min sketch error bound. Default 0.001.
	CMSketchEps float64
	// CMSketchConfidence is the count-min sketch confidence. Default 0.9.
	CMSketchConfidence float64
}

func (e *EvictionConfig) setDefaults() {
	if e.WindowCapacityRatio <= 0 {
		e.WindowCapacityRatio = 0.1
	}
	if e.ProtectedCapacityRatio <= 0 {
		e.ProtectedCapacityRatio = 0.8
	}
	if e.CMSketchEps <= 0 {
		e.CMSketchEps = 0.001
	}
	if e.CMSketchConfidence <= 0 {
		e.CMSketchConfidence = 0.9
	}
}

// Config holds the recognized options for Open, per spec §6.
type Config struct {
	// Dir is the directory holding one file per region. Required.
	Dir string

	// Capacity is the total number of bytes the arena may occupy,
	// expressed as a whole number of regions (rounded down).
	Capacity int64

	// RegionSize is the fixed size of each region file, a multiple of
	// Align. Default 64 MiB.
	RegionSize int64

	// Align is the device's I/O alignment granularity in bytes. Default
	// 4096.
	Align int

	// IOSize is the target size of a single flusher write, a multiple of
	// Align. Default 16 KiB.
	IOSize int

	// Flushers is the number of concurrent flusher workers. Default 1.
	Flushers int

	// Reclaimers is the number of concurrent reclaimer workers. Default 1.
	Reclaimers int

	// RecoverConcurrency bounds the number of regions scanned in parallel
	// at Open. Default equals Reclaimers.
	RecoverConcurrency int

	// CleanRegionThreshold is the low-water mark of Clean regions below
	// which reclamation is prioritized and admission may throttle. 0
	// defaults to Reclaimers; a value greater than the total region count
	// is an error (see Open, resolving spec §9's first Open Question).
	CleanRegionThreshold int

	// CatalogBits selects 2^CatalogBits catalog shards. Default 6.
	CatalogBits int

	// Eviction configures the W-TinyLFU policy.
	Eviction EvictionConfig

	// Compression selects the value compression transform.
	Compression CompressionKind

	// Logger receives structured diagnostics from every subsystem. A
	// no-op logger is used if nil.
	Logger *zap.Logger
}

func (c *Config) setDefaults() {
	if c.RegionSize == 0 {
		c.RegionSize = 64 * 1024 * 1024
	}
	if c.Align == 0 {
		c.Align = 4096
	}
	if c.IOSize == 0 {
		c.IOSize = 16 * 1024
	}
	if c.Flushers == 0 {
		c.Flushers = 1
	}
	if c.Reclaimers == 0 {
		c.Reclaimers = 1
	}
	if c.RecoverConcurrency == 0 {
		c.RecoverConcurrency = c.Reclaimers
	}
	if c.CatalogBits == 0 {
		c.CatalogBits = 6
	}
	if c.CleanRegionThreshold == 0 {
		c.CleanRegionThreshold = c.Reclaimers
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	c.Eviction.setDefaults()
}

// totalRegions returns the number of whole regions that fit in Capacity.
func (c *Config) totalRegions() int {
	if c.RegionSize == 0 {
		return 0
	}
	return int(c.Capacity / c.RegionSize)
}

// validate checks configuration consistency. Called by Open after
// setDefaults. Resolves spec §9's open question on clean_region_threshold
// by erroring rather than clamping.
func (c *Config) validate() error {
	if c.Dir == "" {
		return fmt.Errorf("%w: dir is required", ErrInvalidConfig)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidConfig)
	}
	if c.RegionSize <= 0 || c.RegionSize%int64(c.Align) != 0 {
		return fmt.Errorf("%w: region_size must be a positive multiple of align", ErrInvalidConfig)
	}
	if c.Align <= 0 || c.Align&(c.Align-1) != 0 {
		return fmt.Errorf("%w: align must be a power of two", ErrInvalidConfig)
	}
	if c.IOSize <= 0 || c.IOSize%c.Align != 0 {
		return fmt.Errorf("%w: io_size must be a positive multiple of align", ErrInvalidConfig)
	}
	if c.Flushers <= 0 {
		return fmt.Errorf("%w: flushers must be positive", ErrInvalidConfig)
	}
	if c.Reclaimers <= 0 {
		return fmt.Errorf("%w: reclaimers must be positive", ErrInvalidConfig)
	}
	total := c.totalRegions()
	if total < c.Flushers+c.Reclaimers {
		return fmt.Errorf("%w: capacity yields %d regions, fewer than flushers+reclaimers (%d)",
			ErrInvalidConfig, total, c.Flushers+c.Reclaimers)
	}
	if c.CleanRegionThreshold > total {
		return fmt.Errorf("%w: clean_region_threshold (%d) exceeds total regions (%d)",
			ErrInvalidConfig, c.CleanRegionThreshold, total)
	}
	if c.CatalogBits < 0 || c.CatalogBits > 20 {
		return fmt.Errorf("%w: catalog_bits out of range", ErrInvalidConfig)
	}
	return nil
}
