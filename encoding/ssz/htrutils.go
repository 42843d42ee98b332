// Package ssz implements the subset of Simple Serialize Merkleization the
// gateway needs to reproduce execution payload transaction roots.
package ssz

import (
	"encoding/binary"

	"github.com/preconf-labs/gateway/crypto/hash"
)

// Uint64Root computes the HashTreeRoot Merkleization of a simple uint64
// value according to the Ethereum Simple Serialize specification.
func Uint64Root(val uint64) [32]byte {
	var root [32]byte
	binary.LittleEndian.PutUint64(root[:8], val)
	return root
}

// MixInLength mixes the length of a list into its vector root, yielding the
// root of the list per the Simple Serialize specification.
func MixInLength(root [32]byte, length uint64) [32]byte {
	return hash.Combi(root, Uint64Root(length))
}

// ChunkCount returns the number of 32-byte chunks a byte blob packs into.
func ChunkCount(byteLen uint64) uint64 {
	return (byteLen + 31) / 32
}

// ByteListRoot computes the HashTreeRoot of an SSZ List[byte, maxBytes]:
// the blob is packed into 32-byte chunks, merkleized at the chunk limit of
// the list, and its byte length is mixed in.
func ByteListRoot(blob []byte, maxBytes uint64) [32]byte {
	limit := ChunkCount(maxBytes)
	count := ChunkCount(uint64(len(blob)))
	var chunk [32]byte
	body := Merkleize(count, limit, func(i uint64) []byte {
		chunk = [32]byte{}
		copy(chunk[:], blob[32*i:])
		return chunk[:]
	})
	return MixInLength(body, uint64(len(blob)))
}
