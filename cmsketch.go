// Count-min sketch frequency estimation for W-TinyLFU, sized from an
// error bound and confidence the way the original Rust implementation's
// EvictionConfig::Lfu exposes cmsketch_eps/cmsketch_confidence rather
// than raw width/depth (spec §4.D).
package strata

import (
	"math"

	"github.com/zeebo/xxh3"
)

type cmSketch struct {
	width   int
	depth   int
	counts  [][]uint8
	seeds   []uint64
	samples uint64
	period  uint64
}

func newCMSketch(eps, confidence float64) *cmSketch {
	width := int(math.Ceil(math.E / eps))
	if width < 16 {
		width = 16
	}
	depth := int(math.Ceil(math.Log(1 / (1 - confidence))))
	if depth < 1 {
		depth = 1
	}

	counts := make([][]uint8, depth)
	for i := range counts {
		counts[i] = make([]uint8, width)
	}
	seeds := make([]uint64, depth)
	for i := range seeds {
		// Distinct, deterministic seeds per row so the rows hash
		// independently without needing a real RNG.
		seeds[i] = 0x9e3779b97f4a7c15 * uint64(i+1)
	}

	return &cmSketch{
		width:  width,
		depth:  depth,
		counts: counts,
		seeds:  seeds,
		period: uint64(width),
	}
}

func (s *cmSketch) rowIndex(keyHash uint64, row int) int {
	var buf [16]byte
	putUint64(buf[0:8], keyHash)
	putUint64(buf[8:16], s.seeds[row])
	h := xxh3.Hash(buf[:])
	return int(h % uint64(s.width))
}

// increment bumps every row's counter for keyHash, saturating at 255,
// and ages the whole sketch once enough samples have accumulated.
func (s *cmSketch) increment(keyHash uint64) {
	for row := 0; row < s.depth; row++ {
		idx := s.rowIndex(keyHash, row)
		if s.counts[row][idx] < math.MaxUint8 {
			s.counts[row][idx]++
		}
	}
	s.samples++
	if s.samples >= s.period {
		s.age()
	}
}

// estimate returns the minimum counter across rows, the standard
// count-min point estimate.
func (s *cmSketch) estimate(keyHash uint64) uint8 {
	min := uint8(math.MaxUint8)
	for row := 0; row < s.depth; row++ {
		v := s.counts[row][s.rowIndex(keyHash, row)]
		if v < min {
			min = v
		}
	}
	return min
}

// age halves every counter, the periodic decay spec §4.D calls for once
// aggregate increments exceed a sample period equal to the sketch width.
func (s *cmSketch) age() {
	for row := range s.counts {
		for i, v := range s.counts[row] {
			s.counts[row][i] = v / 2
		}
	}
	s.samples = 0
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
