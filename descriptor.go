package strata

// EntryDescriptor is the catalog's record of where a key's value lives
// on the arena and how to interpret it (spec §4.C).
type EntryDescriptor struct {
	RegionID        int
	Offset          int64
	CompressedLen   uint32 // length of the value bytes after compression
	UncompressedLen uint32
	Compression     CompressionKind
	Sequence        uint64
	KeyHash         uint64

	// FramedLen is the full on-disk footprint of the entry (header, key,
	// compressed value, checksum, padding), the span a reader must fetch
	// in one aligned I/O before it can decode the frame.
	FramedLen uint32
}
