// Value compression, applied before an entry is handed to the writer.
//
// Compression is a pure byte-in/byte-out transform (spec §1: compression
// algorithm internals are out of scope). strata only decides *when* to
// call it and records which transform was used in the entry header's
// compression_tag so a later read can invert it regardless of the
// store's current Config.Compression.
package strata

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Shared encoder/decoder — both are documented safe for concurrent use.
// Constructed once because building the internal tables is expensive
// relative to compressing a single entry; SpeedFastest favors the flush
// hot path over squeezing extra ratio out of value bytes.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// compressValue applies kind to data, returning the bytes to write to
// disk. CompressionNone returns data unchanged (no copy).
func compressValue(kind CompressionKind, data []byte) ([]byte, error) {
	switch kind {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("%w: unknown compression kind %d", ErrCodec, kind)
	}
}

// decompressValue inverts compressValue using the tag stored in the
// entry's header, independent of the store's current configuration.
func decompressValue(kind CompressionKind, data []byte) ([]byte, error) {
	switch kind {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupted, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression kind %d", ErrCodec, kind)
	}
}
