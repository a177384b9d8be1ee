// Value compression round-trip tests.
package strata

import (
	"bytes"
	"testing"
)

func TestCompressNoneIsIdentity(t *testing.T) {
	data := []byte("uncompressed bytes")
	out, err := compressValue(CompressionNone, data)
	if err != nil {
		t.Fatalf("compressValue: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("compressValue(None) mutated the data")
	}
}

func TestCompressZstdRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("repeat-me "), 100)
	compressed, err := compressValue(CompressionZstd, data)
	if err != nil {
		t.Fatalf("compressValue: %v", err)
	}
	if bytes.Equal(compressed, data) {
		t.Error("zstd compression of repetitive data produced identical bytes")
	}
	decompressed, err := decompressValue(CompressionZstd, compressed)
	if err != nil {
		t.Fatalf("decompressValue: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Error("zstd round trip did not reproduce the original bytes")
	}
}

func TestDecompressZstdRejectsGarbage(t *testing.T) {
	if _, err := decompressValue(CompressionZstd, []byte("not zstd data")); err == nil {
		t.Fatal("decompressValue accepted non-zstd bytes")
	}
}

func TestCompressUnknownKind(t *testing.T) {
	if _, err := compressValue(CompressionKind(99), []byte("x")); err == nil {
		t.Fatal("compressValue accepted an unknown compression kind")
	}
}
