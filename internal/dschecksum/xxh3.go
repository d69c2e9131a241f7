package dschecksum

import "github.com/zeebo/xxh3"

// xxh3Value computes the 32-bit truncation of the 64-bit XXH3 hash of data.
func xxh3Value(data []byte) uint32 {
	return uint32(xxh3.Hash(data))
}
