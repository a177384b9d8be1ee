// Key hashing and catalog shard selection.
//
// Every key is hashed once with xxh3 into a 64-bit fingerprint. The
// fingerprint doubles as the catalog's shard selector (its top bits) and
// as the entry's on-disk key_hash field (spec §3), so a single hash call
// serves both concerns.
package strata

import "github.com/zeebo/xxh3"

// keyHash returns the 64-bit xxh3 fingerprint of an encoded key.
func keyHash(encodedKey []byte) uint64 {
	return xxh3.Hash(encodedKey)
}

// shardIndex extracts the top catalogBits bits of a key hash to select a
// catalog shard. Using the high bits keeps shard selection independent of
// the low bits used for bucket placement inside a shard's map.
func shardIndex(h uint64, catalogBits int) uint32 {
	if catalogBits == 0 {
		return 0
	}
	return uint32(h >> (64 - catalogBits))
}

// checksum computes the xxh3 checksum of an entry's header+key+value
// bytes, per the on-disk format in spec §6.
func checksum(b []byte) uint64 {
	return xxh3.Hash(b)
}
