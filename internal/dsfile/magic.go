package dsfile

import (
	"math/bits"

	"github.com/aalhour/extentstore/internal/encoding"
)

// magicValue identifies a file written by this engine, analogous to
// block.BlockBasedTableMagicNumber. It is always written in the writer's
// own native byte order; a reader that can't match it in little-endian
// tries big-endian and, on success, knows it must bitflip every other
// multi-byte header field in the file.
const magicValue uint64 = 0x31657254534b64

// magicSize is the length, in bytes, of the magic value at the start (and,
// redundantly, inside the tail) of a file.
const magicSize = 8

// writeMagic returns the 8-byte little-endian encoding of magicValue: this
// engine always writes in its own native order, which is little-endian.
func writeMagic() []byte {
	buf := make([]byte, magicSize)
	encoding.EncodeFixed64(buf, magicValue)
	return buf
}

// detectByteOrder inspects an 8-byte magic field and reports whether the
// file needs bitflipping, or ErrBadMagic if neither orientation matches.
func detectByteOrder(buf []byte) (needBitflip bool, err error) {
	if len(buf) < magicSize {
		return false, ErrBadMagic
	}
	asLE := encoding.DecodeFixed64(buf)
	if asLE == magicValue {
		return false, nil
	}
	if bits.ReverseBytes64(asLE) == magicValue {
		return true, nil
	}
	return false, ErrBadMagic
}
