package dschecksum

import "hash/adler32"

// adlerValue computes the Adler-32 checksum of data. This is the
// spec-mandated default "adler-style rolling checksum" used for an
// extent's header, fixed-buffer, and variable-buffer checksums.
func adlerValue(data []byte) uint32 {
	return adler32.Checksum(data)
}
