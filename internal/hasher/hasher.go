// Package hasher fingerprints image sources so cache entries can be checked
// against the files they were generated from.
package hasher

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// Len is the hex length stored in cache entries (64 bits).
const Len = 16

// ContentHash computes the xxHash64 of data and returns a hex string
// truncated to hexLen (0 = full).
func ContentHash(data []byte, hexLen int) string {
	return truncate(xxhash.Sum64(data), hexLen)
}

func truncate(sum uint64, hexLen int) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], sum)
	full := hex.EncodeToString(b[:])
	if hexLen > 0 && hexLen < len(full) {
		return full[:hexLen]
	}
	return full
}
