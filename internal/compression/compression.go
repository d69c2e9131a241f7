// Package compression implements the extent codec's compress-mode
// registry: the packed-extent format reserves a single byte per buffer
// (fixed, variable) to name the algorithm used, and those byte values are
// part of the stable on-disk format.
//
// Reference: _examples/original_source/include/DataSeries/Extent.hpp
// (compress_mode_* constants, compress_all bitmask) and this port's
// teacher, internal/compression/compression.go, for the Compress/
// Decompress/mode-selection shape.
package compression

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/pierrec/lz4/v4"
)

// Mode identifies a compression algorithm. The numeric values are part of
// the on-disk format and must never be renumbered.
type Mode uint8

const (
	// ModeNone stores the buffer uncompressed.
	ModeNone Mode = 0
	// ModeLZO is reserved for LZO compression. Not implemented: see
	// ErrUnknownCompressMode.
	ModeLZO Mode = 1
	// ModeZlib compresses with raw DEFLATE (no zlib header), matching
	// the compression ratio callers expect from "zlib" mode without the
	// fixed 2-byte header/4-byte trailer overhead.
	ModeZlib Mode = 2
	// ModeBZip2 decompresses bzip2 streams. Writing this mode is never
	// selected: the standard library ships only a bzip2 reader.
	ModeBZip2 Mode = 3
	// ModeLZF is reserved for LZF compression. Not implemented.
	ModeLZF Mode = 4
	// ModeSnappy compresses with Snappy.
	ModeSnappy Mode = 5
	// ModeLZ4 compresses with standard-speed LZ4.
	ModeLZ4 Mode = 6
	// ModeLZ4HC compresses with high-compression LZ4.
	ModeLZ4HC Mode = 7
)

// MaxModes is the number of compress-mode bits the selection bitmask may
// address. The packed extent header's reserved compression-flag layout
// caps this at 16; keep the cap explicit rather than implied by a field
// width.
const MaxModes = 16

// AllModes is a bitmask with every defined mode bit set.
const AllModes = 1<<ModeNone | 1<<ModeLZO | 1<<ModeZlib | 1<<ModeBZip2 |
	1<<ModeLZF | 1<<ModeSnappy | 1<<ModeLZ4 | 1<<ModeLZ4HC

// writable is the set of modes this implementation can produce. lzo, lzf,
// and bzip2 are accepted on read (where supported) but never chosen by
// the write-side selector.
const writable = 1<<ModeNone | 1<<ModeZlib | 1<<ModeSnappy | 1<<ModeLZ4 | 1<<ModeLZ4HC

// readable is the set of modes this implementation can decode.
const readable = writable | 1<<ModeBZip2

// ErrUnknownCompressMode is returned when a mode byte names an algorithm
// this build does not implement.
type ErrUnknownCompressMode struct {
	Mode Mode
}

func (e *ErrUnknownCompressMode) Error() string {
	return fmt.Sprintf("compression: unknown or unsupported compress mode %d (%s)", e.Mode, e.Mode)
}

// String returns the human-readable name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeLZO:
		return "lzo"
	case ModeZlib:
		return "zlib"
	case ModeBZip2:
		return "bz2"
	case ModeLZF:
		return "lzf"
	case ModeSnappy:
		return "snappy"
	case ModeLZ4:
		return "lz4"
	case ModeLZ4HC:
		return "lz4hc"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// IsWritable reports whether this build's selector may choose m.
func (m Mode) IsWritable() bool {
	return m < MaxModes && writable&(1<<m) != 0
}

// IsReadable reports whether this build can decompress data written in
// mode m.
func (m Mode) IsReadable() bool {
	return m < MaxModes && readable&(1<<m) != 0
}

// Compress compresses data using the given mode.
func Compress(m Mode, data []byte) ([]byte, error) {
	switch m {
	case ModeNone:
		return data, nil
	case ModeSnappy:
		return snappy.Encode(nil, data), nil
	case ModeZlib:
		return compressRawDeflate(data)
	case ModeLZ4:
		return compressLZ4(data, false)
	case ModeLZ4HC:
		return compressLZ4(data, true)
	default:
		return nil, &ErrUnknownCompressMode{Mode: m}
	}
}

// Decompress decompresses data that was compressed with mode m.
// expectedSize, when known, lets the LZ4 decoder allocate exactly once;
// pass 0 if unknown.
func Decompress(m Mode, data []byte, expectedSize int) ([]byte, error) {
	switch m {
	case ModeNone:
		return data, nil
	case ModeSnappy:
		return snappy.Decode(nil, data)
	case ModeZlib:
		return decompressRawDeflate(data)
	case ModeBZip2:
		return io.ReadAll(bzip2.NewReader(bytes.NewReader(data)))
	case ModeLZ4, ModeLZ4HC:
		return decompressLZ4(data, expectedSize)
	default:
		return nil, &ErrUnknownCompressMode{Mode: m}
	}
}

func compressRawDeflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("compression: raw deflate writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compression: raw deflate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compression: raw deflate close: %w", err)
	}
	return buf.Bytes(), nil
}

func decompressRawDeflate(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

// compressLZ4 compresses data using LZ4 raw block format (not the LZ4
// frame format, which carries its own magic and headers we don't want in
// a buffer whose size is already tracked by the extent header).
func compressLZ4(data []byte, highCompression bool) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))

	var n int
	var err error
	if highCompression {
		var ht [1 << 16]int
		n, err = lz4.CompressBlockHC(data, dst, lz4.CompressionLevel(9), ht[:], nil)
	} else {
		var ht [1 << 16]int
		n, err = lz4.CompressBlock(data, dst, ht[:])
	}
	if err != nil {
		return nil, fmt.Errorf("compression: lz4 compress block: %w", err)
	}
	if n == 0 {
		// Incompressible input: lz4 signals this with n==0. The mode
		// selector in internal/codec treats this the same as "output
		// not smaller than input" and discards the mode.
		return nil, nil
	}
	return dst[:n], nil
}

func decompressLZ4(data []byte, expectedSize int) ([]byte, error) {
	if expectedSize > 0 {
		dst := make([]byte, expectedSize)
		n, err := lz4.UncompressBlock(data, dst)
		if err != nil {
			return nil, fmt.Errorf("compression: lz4 uncompress block: %w", err)
		}
		return dst[:n], nil
	}

	bufSize := max(len(data)*4, 256)
	for range 10 {
		dst := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(data, dst)
		if err == nil {
			return dst[:n], nil
		}
		bufSize *= 2
	}
	return nil, fmt.Errorf("compression: lz4 uncompress block: buffer too small after retries")
}
