package dsfile

import (
	"math/bits"

	"github.com/aalhour/extentstore/internal/encoding"
)

// codecHeaderSize mirrors internal/codec's unexported headerSize: the
// packed-extent layout is part of the on-disk format, fixed at 40 bytes,
// so duplicating the constant here (rather than exporting it from codec
// purely for this reader's benefit) keeps codec's header layout private
// to the package that owns encoding/decoding it.
const codecHeaderSize = 40

func padTo8(n int) int {
	return (n + 7) &^ 7
}

// peekExtentTotalSize reads just enough of a packed extent's header to
// compute its total on-disk size (header + padded name + padded fixed +
// padded variable), without parsing the rest of the header.
func peekExtentTotalSize(header []byte, needBitflip bool) int {
	nameLen := decodeFlip32(header[16:], needBitflip)
	fixedPackedSize := decodeFlip32(header[24:], needBitflip)
	variablePackedSize := decodeFlip32(header[32:], needBitflip)
	return codecHeaderSize + padTo8(int(nameLen)) + padTo8(int(fixedPackedSize)) + padTo8(int(variablePackedSize))
}

func decodeFlip32(buf []byte, flip bool) uint32 {
	v := encoding.DecodeFixed32(buf)
	if flip {
		v = bits.ReverseBytes32(v)
	}
	return v
}
