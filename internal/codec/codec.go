// Package codec packs an Extent to its on-disk byte representation and
// unpacks it back, implementing the format in §4.1: a fixed header of
// checksums and sizes, the extent-type name, and the independently
// compressed fixed and variable buffers.
//
// Pre-compression transforms (relative packing, unique-string pooling,
// scaled doubles) are applied by producers while they populate an
// internal/extent.Extent, not re-derived here: the codec's contract is to
// round-trip whatever bytes are already in Fixed/Variable, which is where
// the format's real complexity lives — binary layout, multi-algorithm
// compressor selection, the chained checksum, and null-bitmap compaction.
package codec

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/aalhour/extentstore/internal/compression"
	"github.com/aalhour/extentstore/internal/dschecksum"
	"github.com/aalhour/extentstore/internal/encoding"
	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

// headerSize is the fixed portion of the packed layout, up to and
// including the 2-byte reserved field, before the type name.
const headerSize = 40

// flagNullBitmapStripped marks that every null bit in the extent's fixed
// buffer was zero, so the compactor dropped the bitmap bytes before
// compression; the unpacker must reinsert zeroed bitmap bytes per record.
const flagNullBitmapStripped uint16 = 1 << 0

// PackOptions configures Pack and CompressBody.
type PackOptions struct {
	// AllowedModes is a bitmask of compression.Mode values the selector
	// may try.
	AllowedModes uint32
	// Level is accepted but not consulted: every algorithm runs at a
	// fixed level (zlib at best speed, lz4hc at level 9).
	Level int
	// ChecksumAlgorithm selects the checksum used for header, fixed,
	// variable, and chained checksums.
	ChecksumAlgorithm dschecksum.Algorithm
	// PreviousChain is the running chained checksum before this extent.
	// Only consulted by Pack; CompressBody doesn't need it; AssembleHeader
	// takes it as an explicit argument instead.
	PreviousChain uint32
}

// CompressedBody is the CPU-bound output of compressing an Extent: two
// independently compressed buffers plus their checksums, with the
// type name carried alongside so AssembleHeader doesn't need the
// original Extent. Building a CompressedBody touches no shared state and
// has no dependency on write order, so internal/pipeline's compressor
// workers can produce one per extent fully in parallel; only
// AssembleHeader, which needs the previous extent's chained checksum, has
// to run in submission order.
type CompressedBody struct {
	TypeName             string
	FixedPacked          []byte
	FixedMode            compression.Mode
	FixedUnpackedSize    int
	FixedChecksum        uint32
	VariablePacked       []byte
	VariableMode         compression.Mode
	VariableUnpackedSize int
	VariableChecksum     uint32
	NullBitmapStripped   bool
}

// CompressBody performs the compression half of Pack: null-bitmap
// compaction and independent compressor selection for the fixed and
// variable buffers, plus their body checksums. It does not know or need
// the running chained checksum.
func CompressBody(e *extent.Extent, opts PackOptions) (*CompressedBody, error) {
	fixedUnpacked, stripped := compactNullBitmap(e)

	fixedPacked, fixedMode, err := selectCompression(fixedUnpacked, opts.AllowedModes, opts.Level)
	if err != nil {
		return nil, fmt.Errorf("codec: pack fixed buffer: %w", err)
	}
	variablePacked, variableMode, err := selectCompression(e.Variable, opts.AllowedModes, opts.Level)
	if err != nil {
		return nil, fmt.Errorf("codec: pack variable buffer: %w", err)
	}

	return &CompressedBody{
		TypeName:             e.Type.Name,
		FixedPacked:          fixedPacked,
		FixedMode:            fixedMode,
		FixedUnpackedSize:    len(fixedUnpacked),
		FixedChecksum:        dschecksum.Compute(opts.ChecksumAlgorithm, fixedPacked),
		VariablePacked:       variablePacked,
		VariableMode:         variableMode,
		VariableUnpackedSize: len(e.Variable),
		VariableChecksum:     dschecksum.Compute(opts.ChecksumAlgorithm, variablePacked),
		NullBitmapStripped:   stripped,
	}, nil
}

// AssembleHeader builds the final packed-extent byte buffer from a
// CompressedBody and the chained checksum carried forward from the
// previously written extent: the cheap, write-order-dependent half of
// Pack. Safe to call while holding a sink's single writer-turn lock,
// unlike CompressBody.
func AssembleHeader(body *CompressedBody, previousChain uint32, algo dschecksum.Algorithm) (packed []byte, newChain uint32, err error) {
	typeName := []byte(body.TypeName)
	nameSection := padTo8(len(typeName))
	fixedSection := padTo8(len(body.FixedPacked))
	variableSection := padTo8(len(body.VariablePacked))

	total := headerSize + nameSection + fixedSection + variableSection
	buf := make([]byte, total)

	encoding.EncodeFixed32(buf[16:], uint32(len(typeName)))
	encoding.EncodeFixed32(buf[20:], uint32(body.FixedUnpackedSize))
	encoding.EncodeFixed32(buf[24:], uint32(len(body.FixedPacked)))
	encoding.EncodeFixed32(buf[28:], uint32(body.VariableUnpackedSize))
	encoding.EncodeFixed32(buf[32:], uint32(len(body.VariablePacked)))
	buf[36] = byte(body.FixedMode)
	buf[37] = byte(body.VariableMode)
	flags := uint16(0)
	if body.NullBitmapStripped {
		flags |= flagNullBitmapStripped
	}
	encoding.EncodeFixed16(buf[38:], flags)

	copy(buf[headerSize:], typeName)
	copy(buf[headerSize+nameSection:], body.FixedPacked)
	copy(buf[headerSize+nameSection+fixedSection:], body.VariablePacked)

	chain := dschecksum.Chain(previousChain, body.FixedChecksum, body.VariableChecksum)

	encoding.EncodeFixed32(buf[4:], body.FixedChecksum)
	encoding.EncodeFixed32(buf[8:], body.VariableChecksum)
	encoding.EncodeFixed32(buf[12:], chain)

	headerChecksum := dschecksum.Compute(algo, buf[4:headerSize+nameSection])
	encoding.EncodeFixed32(buf[0:], headerChecksum)

	return buf, chain, nil
}

// Pack packs e into its on-disk byte representation in one call,
// returning the packed bytes and the updated chained checksum. Equivalent
// to CompressBody followed by AssembleHeader; callers that need to
// overlap compression with I/O (internal/pipeline) should call those two
// steps separately instead.
func Pack(e *extent.Extent, opts PackOptions) (packed []byte, newChain uint32, err error) {
	body, err := CompressBody(e, opts)
	if err != nil {
		return nil, 0, err
	}
	return AssembleHeader(body, opts.PreviousChain, opts.ChecksumAlgorithm)
}

// UnpackOptions configures Unpack.
type UnpackOptions struct {
	Library           *typeregistry.Library
	ChecksumAlgorithm dschecksum.Algorithm
	PreviousChain     uint32
	// VerifyChecksums disables checksum validation when false, letting a
	// caller implement a relaxed ReadChecks level.
	VerifyChecksums bool
	// NeedBitflip indicates the file's magic identified a foreign byte
	// order: every 32- and 64-bit header field (including the stored
	// checksums) must be byte-swapped before use. The raw checksum
	// computation itself is byte-order agnostic (it runs over the
	// header's literal bytes), so only the *interpreted* integer values
	// need flipping.
	NeedBitflip bool
}

func decodeFixed32Flip(buf []byte, flip bool) uint32 {
	v := encoding.DecodeFixed32(buf)
	if flip {
		v = bits.ReverseBytes32(v)
	}
	return v
}

func decodeFixed16Flip(buf []byte, flip bool) uint16 {
	v := encoding.DecodeFixed16(buf)
	if flip {
		v = bits.ReverseBytes16(v)
	}
	return v
}

// Unpack parses a packed extent buffer back into an Extent, returning the
// updated chained checksum for callers verifying the running chain.
func Unpack(buf []byte, opts UnpackOptions) (e *extent.Extent, newChain uint32, err error) {
	if len(buf) < headerSize {
		return nil, 0, fmt.Errorf("codec: %w: buffer shorter than header", ErrTruncated)
	}

	flip := opts.NeedBitflip
	headerChecksum := decodeFixed32Flip(buf[0:], flip)
	fixedChecksum := decodeFixed32Flip(buf[4:], flip)
	variableChecksum := decodeFixed32Flip(buf[8:], flip)
	chainedChecksum := decodeFixed32Flip(buf[12:], flip)
	nameLen := decodeFixed32Flip(buf[16:], flip)
	fixedUnpackedSize := decodeFixed32Flip(buf[20:], flip)
	fixedPackedSize := decodeFixed32Flip(buf[24:], flip)
	variableUnpackedSize := decodeFixed32Flip(buf[28:], flip)
	variablePackedSize := decodeFixed32Flip(buf[32:], flip)
	fixedMode := compression.Mode(buf[36])
	variableMode := compression.Mode(buf[37])
	flags := decodeFixed16Flip(buf[38:], flip)

	nameSection := padTo8(int(nameLen))
	fixedSection := padTo8(int(fixedPackedSize))
	variableSection := padTo8(int(variablePackedSize))

	want := headerSize + nameSection + fixedSection + variableSection
	if len(buf) < want {
		return nil, 0, fmt.Errorf("codec: %w: have %d bytes, want %d", ErrTruncated, len(buf), want)
	}

	if opts.VerifyChecksums {
		gotHeader := dschecksum.Compute(opts.ChecksumAlgorithm, buf[4:headerSize+nameSection])
		if gotHeader != headerChecksum {
			return nil, 0, ErrBadHeaderChecksum
		}
	}

	typeName := string(buf[headerSize : headerSize+int(nameLen)])
	fixedPacked := buf[headerSize+nameSection : headerSize+nameSection+int(fixedPackedSize)]
	variablePacked := buf[headerSize+nameSection+fixedSection : headerSize+nameSection+fixedSection+int(variablePackedSize)]

	if opts.VerifyChecksums {
		if dschecksum.Compute(opts.ChecksumAlgorithm, fixedPacked) != fixedChecksum {
			return nil, 0, ErrBadBodyChecksum
		}
		if dschecksum.Compute(opts.ChecksumAlgorithm, variablePacked) != variableChecksum {
			return nil, 0, ErrBadBodyChecksum
		}
	}

	chain := dschecksum.Chain(opts.PreviousChain, fixedChecksum, variableChecksum)
	if opts.VerifyChecksums && chain != chainedChecksum {
		return nil, 0, ErrChainBroken
	}

	et, ok := opts.Library.LookupByName(typeName)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", typeregistry.ErrTypeNotInLibrary, typeName)
	}

	fixedData, err := compression.Decompress(fixedMode, fixedPacked, int(fixedUnpackedSize))
	if err != nil {
		return nil, 0, fmt.Errorf("codec: decompress fixed buffer: %w", err)
	}
	variableData, err := compression.Decompress(variableMode, variablePacked, int(variableUnpackedSize))
	if err != nil {
		return nil, 0, fmt.Errorf("codec: decompress variable buffer: %w", err)
	}

	if flags&flagNullBitmapStripped != 0 {
		fixedData = expandNullBitmap(fixedData, et)
	}

	e = &extent.Extent{
		Type:     et,
		Fixed:    fixedData,
		Variable: append([]byte(nil), variableData...),
	}
	return e, chain, nil
}

func padTo8(n int) int {
	return (n + 7) &^ 7
}

// compactNullBitmap returns e.Fixed, stripped of its per-record null
// bitmap prefix if every bit in every record's bitmap is zero across the
// whole extent. The returned bool reports whether stripping occurred.
func compactNullBitmap(e *extent.Extent) ([]byte, bool) {
	n := e.Type.NullBytes
	if n == 0 {
		return e.Fixed, false
	}
	recSize := e.Type.FixedRecordSize
	nrecords := e.NRecords()
	for r := 0; r < nrecords; r++ {
		base := r * recSize
		for b := 0; b < n; b++ {
			if e.Fixed[base+b] != 0 {
				return e.Fixed, false
			}
		}
	}

	stripped := make([]byte, 0, (recSize-n)*nrecords)
	for r := 0; r < nrecords; r++ {
		base := r * recSize
		stripped = append(stripped, e.Fixed[base+n:base+recSize]...)
	}
	return stripped, true
}

// expandNullBitmap reinserts a zeroed null-bitmap prefix into every
// record of a buffer that was compacted by compactNullBitmap.
func expandNullBitmap(data []byte, et *typeregistry.ExtentType) []byte {
	n := et.NullBytes
	if n == 0 {
		return data
	}
	strippedRecSize := et.FixedRecordSize - n
	if strippedRecSize <= 0 {
		return data
	}
	nrecords := len(data) / strippedRecSize
	out := make([]byte, nrecords*et.FixedRecordSize)
	for r := 0; r < nrecords; r++ {
		srcBase := r * strippedRecSize
		dstBase := r * et.FixedRecordSize
		copy(out[dstBase+n:dstBase+et.FixedRecordSize], data[srcBase:srcBase+strippedRecSize])
	}
	return out
}

// selectCompression tries every allowed+writable mode and keeps the
// smallest output, discarding a mode whose output is not smaller than the
// input. Mode 0 (none) is always a valid fallback.
func selectCompression(data []byte, allowed uint32, level int) ([]byte, compression.Mode, error) {
	best := data
	bestMode := compression.ModeNone
	_ = level // not passed on: compression.Compress takes no level

	for m := compression.Mode(0); m < compression.MaxModes; m++ {
		if m == compression.ModeNone {
			continue
		}
		if allowed&(1<<m) == 0 || !m.IsWritable() {
			continue
		}
		out, err := compression.Compress(m, data)
		if err != nil || out == nil {
			continue
		}
		if len(out) < len(best) {
			best = out
			bestMode = m
		}
	}
	return bytes.Clone(best), bestMode, nil
}
