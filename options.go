package extentstore

// options.go collects configuration structs for a sink, a reader, and the
// server. Following the teacher's options.go, package-internal types are
// re-exported here as aliases. The constructors themselves
// (pipeline.NewSink, dsfile.Open, server.New) take their own option
// types; nothing in this module converts these structs into them.

import (
	"os"
	"runtime"

	"github.com/aalhour/extentstore/internal/compression"
	"github.com/aalhour/extentstore/internal/dschecksum"
	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/logging"
	"github.com/aalhour/extentstore/vfs"
)

// Logger is an alias for the logging.Logger interface, so callers can
// plug in their own implementation without importing internal/logging.
type Logger = logging.Logger

// CompressMode is an alias for the compress-mode registry type.
type CompressMode = compression.Mode

// Compress-mode constants. The numeric values are part of the on-disk
// format; see internal/compression.
const (
	CompressNone   = compression.ModeNone
	CompressLZO    = compression.ModeLZO
	CompressZlib   = compression.ModeZlib
	CompressBZip2  = compression.ModeBZip2
	CompressLZF    = compression.ModeLZF
	CompressSnappy = compression.ModeSnappy
	CompressLZ4    = compression.ModeLZ4
	CompressLZ4HC  = compression.ModeLZ4HC
)

// ChecksumAlgorithm is an alias for the checksum algorithm type.
type ChecksumAlgorithm = dschecksum.Algorithm

// Checksum algorithm constants.
const (
	ChecksumAdler32 = dschecksum.AlgorithmAdler32
	ChecksumCRC32C  = dschecksum.AlgorithmCRC32C
	ChecksumXXH3    = dschecksum.AlgorithmXXH3
)

// ReadChecks selects which checksums a reader validates. This models the
// read-side environment flag from the external-interfaces design: a
// process-wide default that is read once (via ReadChecksFromEnv) at the
// call site constructing ReaderOptions, never re-read deep in the stack.
type ReadChecks int

const (
	// ReadChecksPreUncompress verifies checksums on the still-compressed
	// buffer before decompressing it.
	ReadChecksPreUncompress ReadChecks = iota
	// ReadChecksPostUncompress verifies checksums after decompression.
	ReadChecksPostUncompress
	// ReadChecksVariable32 verifies only the variable-pool checksum.
	ReadChecksVariable32
	// ReadChecksAll performs every available verification.
	ReadChecksAll
	// ReadChecksNone skips checksum verification entirely.
	ReadChecksNone
)

// String returns the human-readable name of the read-checks level.
func (r ReadChecks) String() string {
	switch r {
	case ReadChecksPreUncompress:
		return "pre_uncompress"
	case ReadChecksPostUncompress:
		return "post_uncompress"
	case ReadChecksVariable32:
		return "variable32"
	case ReadChecksAll:
		return "all"
	case ReadChecksNone:
		return "none"
	default:
		return "unknown"
	}
}

// ReadChecksFromEnv reads the DATASERIES_READ_CHECKS environment
// variable once and returns the corresponding ReadChecks level, falling
// back to ReadChecksAll when unset or unrecognized. Callers should invoke
// this at the point where they build ReaderOptions, not from inside the
// reader itself, keeping the process-wide knob an explicit value rather
// than an ad hoc os.Getenv deep in the read path.
func ReadChecksFromEnv() ReadChecks {
	switch os.Getenv("DATASERIES_READ_CHECKS") {
	case "pre_uncompress":
		return ReadChecksPreUncompress
	case "post_uncompress":
		return ReadChecksPostUncompress
	case "variable32":
		return ReadChecksVariable32
	case "none":
		return ReadChecksNone
	case "all", "":
		return ReadChecksAll
	default:
		return ReadChecksAll
	}
}

// CommitCallback is the type of SinkOptions.OnCommit, a per-extent hook
// for an extent that has been written to the file; no code in this
// module calls it (internal/pipeline's Sink uses its own OnWrite hook
// instead). offset is the byte
// offset the extent's header starts at. Rotate (see SinkOptions) may only
// be called from inside this callback.
type CommitCallback func(offset int64, ext *extent.Extent) error

// SinkOptions configures a write pipeline (internal/pipeline).
type SinkOptions struct {
	// FS is the filesystem implementation to use. If nil, vfs.Default()
	// is used.
	FS vfs.FS

	// AllowedCompressModes is a bitmask of compression.Mode values the
	// selector is permitted to try. Default: compression's writable set
	// at every level.
	AllowedCompressModes uint32

	// CompressionLevel is the requested compression level (1-9). The
	// codec's algorithms run at fixed levels and do not consult it.
	CompressionLevel int

	// NumWorkers is the number of compressor worker goroutines. 0 means
	// extents are packed inline by the producer, with no parallelism.
	// Default: runtime.NumCPU().
	NumWorkers int

	// MaxBytesInProgress bounds the total unpacked size of extents
	// admitted but not yet written; producers block past this bound.
	MaxBytesInProgress int64

	// ChecksumAlgorithm selects the checksum algorithm used for header,
	// fixed, variable, and chained checksums. Default: ChecksumAdler32.
	ChecksumAlgorithm ChecksumAlgorithm

	// Sync causes close (and, if set, rotate) to fsync the file before
	// returning.
	Sync bool

	// OnCommit, if set, is called once per committed extent inside the
	// sink's lock. Rotate must be invoked from inside this callback.
	OnCommit CommitCallback

	// Logger receives pipeline diagnostics. If nil, a default logger
	// writing to stderr is used.
	Logger Logger
}

// DefaultSinkOptions returns SinkOptions with default values.
func DefaultSinkOptions() *SinkOptions {
	return &SinkOptions{
		FS:                   nil, // vfs.Default()
		AllowedCompressModes: compression.AllModes,
		CompressionLevel:     9,
		NumWorkers:           runtime.NumCPU(),
		MaxBytesInProgress:   64 * 1024 * 1024, // 64MB
		ChecksumAlgorithm:    ChecksumAdler32,
		Sync:                 false,
		OnCommit:             nil,
		Logger:               nil,
	}
}

// ReaderOptions configures a file reader (internal/dsfile).
type ReaderOptions struct {
	// FS is the filesystem implementation to use. If nil, vfs.Default()
	// is used.
	FS vfs.FS

	// ReadChecks selects which checksums are validated while reading.
	// Default: ReadChecksFromEnv().
	ReadChecks ReadChecks

	// Logger receives reader diagnostics.
	Logger Logger
}

// DefaultReaderOptions returns ReaderOptions with default values.
func DefaultReaderOptions() *ReaderOptions {
	return &ReaderOptions{
		FS:         nil,
		ReadChecks: ReadChecksFromEnv(),
		Logger:     nil,
	}
}

// ServerOptions configures the table-orchestration server.
type ServerOptions struct {
	// WorkingDir is the directory table names resolve into. Default:
	// "/tmp/<prefix>.<username>".
	WorkingDir string

	// FS is the filesystem implementation to use.
	FS vfs.FS

	// Logger receives server diagnostics.
	Logger Logger
}

// DefaultServerOptions returns ServerOptions with default values, using
// the current username to build the default working directory.
func DefaultServerOptions() *ServerOptions {
	return &ServerOptions{
		WorkingDir: defaultWorkingDir("extentstore"),
		FS:         nil,
		Logger:     nil,
	}
}

func defaultWorkingDir(prefix string) string {
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	return "/tmp/" + prefix + "." + user
}
