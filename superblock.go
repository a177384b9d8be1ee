// Store-level superblock: a small fixed-size metadata file alongside the
// region files, used for crash detection on Open. This is the same
// "fixed-size padded JSON header with a dirty flag at a known offset"
// approach folio's header.go uses for its single-file format, lifted to
// the directory level since strata's data lives in one file per region
// rather than one file for the whole store.
package strata

import (
	"bytes"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// superblockSize is the fixed size of the on-disk superblock, padded with
// spaces and terminated with a newline, mirroring folio's HeaderSize
// convention.
const superblockSize = 128

const superblockName = "STRATA_SUPERBLOCK"

// superblock records the configuration a store was formatted with and
// whether its last session shut down cleanly.
type superblock struct {
	Version      int   `json:"_v"`
	Dirty        int   `json:"_dirty"` // 1 while a session is open, 0 after a clean Close
	RegionSize   int64 `json:"_rs"`
	Align        int   `json:"_al"`
	CatalogBits  int   `json:"_cb"`
	TotalRegions int   `json:"_tr"`
}

func (s *superblock) encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	if len(data)+1 > superblockSize {
		return nil, fmt.Errorf("%w: superblock too large", ErrInvalidConfig)
	}
	buf := make([]byte, superblockSize)
	copy(buf, data)
	for i := len(data); i < superblockSize-1; i++ {
		buf[i] = ' '
	}
	buf[superblockSize-1] = '\n'
	return buf, nil
}

func readSuperblock(f *os.File) (*superblock, error) {
	buf := make([]byte, superblockSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	var sb superblock
	if err := json.Unmarshal(bytes.TrimSpace(buf), &sb); err != nil {
		return nil, fmt.Errorf("%w: superblock: %v", ErrCorrupted, err)
	}
	return &sb, nil
}

// setSuperblockDirty sets the _dirty flag by re-reading the superblock,
// re-encoding it with the new flag, and rewriting the whole fixed-size
// block in place.
func setSuperblockDirty(f *os.File, dirty bool) error {
	sb, err := readSuperblock(f)
	if err != nil {
		return err
	}
	sb.Dirty = 0
	if dirty {
		sb.Dirty = 1
	}
	buf, err := sb.encode()
	if err != nil {
		return err
	}
	_, err = f.WriteAt(buf, 0)
	return err
}
