// Package hash includes all hashing utilities used in the gateway. Merkle
// trees and SSZ roots are built exclusively on SHA-256.
package hash

import (
	"hash"
	"sync"

	"github.com/minio/sha256-simd"
)

var sha256Pool = sync.Pool{New: func() interface{} {
	return sha256.New()
}}

// Hash defines a function that returns the sha256 checksum of the data passed in.
func Hash(data []byte) [32]byte {
	h, ok := sha256Pool.Get().(hash.Hash)
	if !ok {
		h = sha256.New()
	}
	defer sha256Pool.Put(h)
	h.Reset()

	var b [32]byte
	// The hash interface never returns an error, for that reason
	// we are not handling the error below.
	_, _ = h.Write(data)
	h.Sum(b[:0])

	return b
}

// Combi computes the 32-byte sha256 of the concatenation of two tree nodes.
func Combi(a, b [32]byte) [32]byte {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}
