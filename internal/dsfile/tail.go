package dsfile

import (
	"math/bits"

	"github.com/aalhour/extentstore/internal/dschecksum"
	"github.com/aalhour/extentstore/internal/encoding"
)

// tailSize is the fixed byte length of the trailing tail record:
//
//	[ 8B  index_extent_offset    ]
//	[ 4B  final_chained_checksum ]
//	[ 4B  tail_checksum          ]
//	[ 8B  magic                  ]
//
// Grounded on block.Footer's precedent of placing a fixed-size, magic-
// terminated record at EOF so a reader can always locate it by seeking
// tailSize bytes back from the end, regardless of what precedes it.
const tailSize = 8 + 4 + 4 + magicSize

// Tail locates the index extent and carries the file's final chained
// checksum, the value every extent's chained_checksum must fold into by
// the time a sequential reader reaches EOF.
type Tail struct {
	IndexExtentOffset  uint64
	FinalChainedChecksum uint32
}

// EncodeTail serializes t, appending the tail checksum and magic.
func EncodeTail(t Tail, algo dschecksum.Algorithm) []byte {
	buf := make([]byte, tailSize)
	encoding.EncodeFixed64(buf[0:], t.IndexExtentOffset)
	encoding.EncodeFixed32(buf[8:], t.FinalChainedChecksum)
	tailChecksum := dschecksum.Compute(algo, buf[0:12])
	encoding.EncodeFixed32(buf[12:], tailChecksum)
	copy(buf[16:], writeMagic())
	return buf
}

// DecodeTail parses a tailSize-byte buffer, verifying its magic and
// checksum. needBitflip byte-swaps every multi-byte field, including the
// stored checksum, the same way codec.Unpack does for extent headers.
func DecodeTail(buf []byte, algo dschecksum.Algorithm, needBitflip bool) (Tail, error) {
	if len(buf) < tailSize {
		return Tail{}, ErrTruncatedTail
	}
	magicField := buf[16:24]
	asLE := encoding.DecodeFixed64(magicField)
	matches := asLE == magicValue
	if needBitflip {
		matches = bits.ReverseBytes64(asLE) == magicValue
	}
	if !matches {
		return Tail{}, ErrTruncatedTail
	}

	indexOffset := encoding.DecodeFixed64(buf[0:])
	chain := encoding.DecodeFixed32(buf[8:])
	storedTailChecksum := encoding.DecodeFixed32(buf[12:])
	if needBitflip {
		indexOffset = bits.ReverseBytes64(indexOffset)
		chain = bits.ReverseBytes32(chain)
		storedTailChecksum = bits.ReverseBytes32(storedTailChecksum)
	}

	gotTailChecksum := dschecksum.Compute(algo, buf[0:12])
	if gotTailChecksum != storedTailChecksum {
		return Tail{}, ErrTruncatedTail
	}

	return Tail{IndexExtentOffset: indexOffset, FinalChainedChecksum: chain}, nil
}
