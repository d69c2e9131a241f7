package pipeline

import (
	"sync"

	"github.com/aalhour/extentstore/internal/codec"
	"github.com/aalhour/extentstore/internal/compression"
	"github.com/aalhour/extentstore/internal/dschecksum"
)

// Stats accumulates per-extent counters for a sink, or for a single call to
// WriteExtent when passed as its stats argument. Grounded on
// DataSeriesSink::Stats: beyond aggregate byte counts, it tracks how many
// extents landed in each compress mode, which is cheap because the sink
// already knows the chosen mode for every buffer it writes.
//
// A Stats value must not be shared across sinks: the sink that owns it
// updates it under its own mutex, matching write_controller's pattern of
// one mutex guarding both coordination state and the stats it produces.
type Stats struct {
	mu sync.Mutex

	CompressNone   uint64
	CompressLZO    uint64
	CompressGzip   uint64
	CompressBZip2  uint64
	CompressLZF    uint64
	CompressSnappy uint64
	CompressLZ4    uint64
	CompressLZ4HC  uint64
	CompressXXH3   uint64

	// UnpackedVariable is the sum of variable-pool bytes before
	// compression. UnpackedVariableRaw is the same quantity before any
	// string-interning dedup a producer might apply upstream of the
	// pipeline; this port doesn't implement pack_unique-style pooling
	// inside the sink itself, so the two always agree here.
	UnpackedVariable    uint64
	UnpackedVariableRaw uint64

	PackedBytes   uint64
	UnpackedBytes uint64
	Extents       uint64
}

// NewStats returns a zeroed Stats ready to pass to WriteExtent.
func NewStats() *Stats { return &Stats{} }

// record folds one written extent's compression outcome into s. Called by
// the writer goroutine while it holds the sink's lock, so s's own mutex is
// mostly redundant for sink-owned stats, but record is exported behavior
// through WriteExtent's caller-supplied Stats, which may be read
// concurrently from another goroutine — hence the separate lock.
func (s *Stats) record(body *codec.CompressedBody, algo dschecksum.Algorithm) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bumpMode(body.FixedMode)
	s.bumpMode(body.VariableMode)
	if algo == dschecksum.AlgorithmXXH3 {
		s.CompressXXH3++
	}

	s.UnpackedVariable += uint64(body.VariableUnpackedSize)
	s.UnpackedVariableRaw += uint64(body.VariableUnpackedSize)
	s.PackedBytes += uint64(len(body.FixedPacked)) + uint64(len(body.VariablePacked))
	s.UnpackedBytes += uint64(body.FixedUnpackedSize) + uint64(body.VariableUnpackedSize)
	s.Extents++
}

func (s *Stats) bumpMode(mode compression.Mode) {
	switch mode {
	case compression.ModeNone:
		s.CompressNone++
	case compression.ModeLZO:
		s.CompressLZO++
	case compression.ModeZlib:
		s.CompressGzip++
	case compression.ModeBZip2:
		s.CompressBZip2++
	case compression.ModeLZF:
		s.CompressLZF++
	case compression.ModeSnappy:
		s.CompressSnappy++
	case compression.ModeLZ4:
		s.CompressLZ4++
	case compression.ModeLZ4HC:
		s.CompressLZ4HC++
	}
}

// Snapshot returns a copy of s's counters safe to read without further
// locking. It copies fields individually rather than the struct itself,
// since Stats embeds a mutex that must never be copied by value.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		CompressNone:        s.CompressNone,
		CompressLZO:         s.CompressLZO,
		CompressGzip:        s.CompressGzip,
		CompressBZip2:       s.CompressBZip2,
		CompressLZF:         s.CompressLZF,
		CompressSnappy:      s.CompressSnappy,
		CompressLZ4:         s.CompressLZ4,
		CompressLZ4HC:       s.CompressLZ4HC,
		CompressXXH3:        s.CompressXXH3,
		UnpackedVariable:    s.UnpackedVariable,
		UnpackedVariableRaw: s.UnpackedVariableRaw,
		PackedBytes:         s.PackedBytes,
		UnpackedBytes:       s.UnpackedBytes,
		Extents:             s.Extents,
	}
}
