package dsfile

import (
	"fmt"

	"github.com/aalhour/extentstore/internal/codec"
	"github.com/aalhour/extentstore/internal/compression"
	"github.com/aalhour/extentstore/internal/dschecksum"
	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/typeregistry"
	"github.com/aalhour/extentstore/vfs"
)

// WriterOptions configures a Writer. Compression and checksum settings
// apply to every extent the writer packs, including the library and
// index extents.
type WriterOptions struct {
	AllowedCompressModes uint32
	CompressionLevel     int
	ChecksumAlgorithm    dschecksum.Algorithm
}

// DefaultWriterOptions returns WriterOptions matching the codec's own
// sensible default: every writable mode allowed, adler32 checksums.
func DefaultWriterOptions() WriterOptions {
	return WriterOptions{
		AllowedCompressModes: compression.AllModes,
		CompressionLevel:     6,
		ChecksumAlgorithm:    dschecksum.AlgorithmAdler32,
	}
}

// Writer is a single-file sequential writer implementing the file format's
// library-first, tail-last discipline: magic, then the type library, then
// data extents admitted one at a time via AppendExtent, then (on Close or
// Rotate) the index extent and the tail.
//
// Writer has no locking of its own: internal/pipeline serializes calls to
// AppendExtent/Close/Rotate from its single writer goroutine, the same
// division of responsibility as internal/table.TableBuilder, which also
// assumes a single caller goroutine and leaves concurrency to its caller.
type Writer struct {
	fsys vfs.FS
	path string
	f    vfs.WritableFile
	opts WriterOptions

	offset int64
	chain  uint32
	index  *extent.Extent
}

// Create opens path for writing, writes the magic and the serialized type
// library, and returns a Writer ready for AppendExtent.
func Create(fsys vfs.FS, path string, lib *typeregistry.Library, opts WriterOptions) (*Writer, error) {
	f, err := fsys.Create(path)
	if err != nil {
		return nil, fmt.Errorf("dsfile: create %s: %w", path, err)
	}
	w := &Writer{
		fsys:   fsys,
		path:   path,
		f:      f,
		opts:   opts,
		index:  newIndexExtent(),
		offset: 0,
	}
	if err := w.writeMagicAndLibrary(lib); err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeMagicAndLibrary(lib *typeregistry.Library) error {
	magic := writeMagic()
	if err := w.f.Append(magic); err != nil {
		return fmt.Errorf("dsfile: write magic: %w", err)
	}
	w.offset += int64(len(magic))

	libExtent, err := buildLibraryExtent(lib)
	if err != nil {
		return err
	}
	// The library and index extents are structural, not data: they are
	// independently checksummed like any packed extent, but don't
	// participate in the data chain the tail certifies, since the
	// pipeline's ordering and chain guarantees only ever apply to
	// producer-submitted data extents.
	packed, _, err := codec.Pack(libExtent, codec.PackOptions{
		AllowedModes:      w.opts.AllowedCompressModes,
		Level:             w.opts.CompressionLevel,
		ChecksumAlgorithm: w.opts.ChecksumAlgorithm,
	})
	if err != nil {
		return fmt.Errorf("dsfile: pack library extent: %w", err)
	}
	if err := w.f.Append(packed); err != nil {
		return fmt.Errorf("dsfile: write library extent: %w", err)
	}
	w.offset += int64(len(packed))
	return nil
}

// AppendExtent packs and writes e, folding its chained checksum into the
// running total and recording its offset and type name in the index.
// Returns the byte offset the extent was written at.
func (w *Writer) AppendExtent(e *extent.Extent) (int64, error) {
	body, err := codec.CompressBody(e, codec.PackOptions{
		AllowedModes:      w.opts.AllowedCompressModes,
		Level:             w.opts.CompressionLevel,
		ChecksumAlgorithm: w.opts.ChecksumAlgorithm,
	})
	if err != nil {
		return 0, fmt.Errorf("dsfile: compress extent: %w", err)
	}
	packed, off, err := w.AssembleCompressedExtent(body)
	if err != nil {
		return 0, err
	}
	if err := w.WriteBytes(packed); err != nil {
		return 0, fmt.Errorf("dsfile: write extent at %d: %w", off, err)
	}
	return off, nil
}

// Chain returns the current running chained checksum over data extents
// written so far.
func (w *Writer) Chain() uint32 { return w.chain }

// AssembleCompressedExtent finalizes an already-compressed extent body
// (produced off the hot write path by codec.CompressBody) against this
// writer's current chain, reserves its offset, and records it in the
// index — without touching the underlying file. internal/pipeline calls
// this under its single writer-turn lock, then calls WriteBytes with the
// returned buffer after releasing the lock, the same split codec.Pack's
// CompressBody/AssembleHeader documents.
func (w *Writer) AssembleCompressedExtent(body *codec.CompressedBody) (packed []byte, offset int64, err error) {
	packed, chain, err := codec.AssembleHeader(body, w.chain, w.opts.ChecksumAlgorithm)
	if err != nil {
		return nil, 0, fmt.Errorf("dsfile: assemble extent header: %w", err)
	}
	offset = w.offset
	w.offset += int64(len(packed))
	w.chain = chain
	if err := appendIndexEntry(w.index, indexEntry{Offset: offset, TypeName: body.TypeName}); err != nil {
		return nil, 0, err
	}
	return packed, offset, nil
}

// WriteBytes appends an already-assembled packed extent (from
// AssembleCompressedExtent) to the underlying file. Safe to call without
// holding any lock pipeline-side, since it only touches the file handle.
func (w *Writer) WriteBytes(packed []byte) error {
	if err := w.f.Append(packed); err != nil {
		return fmt.Errorf("dsfile: write bytes: %w", err)
	}
	return nil
}

// writeIndexAndTail packs and writes the index extent and the final tail,
// recording the index extent's offset in the tail.
func (w *Writer) writeIndexAndTail() error {
	indexOffset := w.offset
	packed, _, err := codec.Pack(w.index, codec.PackOptions{
		AllowedModes:      w.opts.AllowedCompressModes,
		Level:             w.opts.CompressionLevel,
		ChecksumAlgorithm: w.opts.ChecksumAlgorithm,
	})
	if err != nil {
		return fmt.Errorf("dsfile: pack index extent: %w", err)
	}
	if err := w.f.Append(packed); err != nil {
		return fmt.Errorf("dsfile: write index extent: %w", err)
	}
	w.offset += int64(len(packed))

	tail := EncodeTail(Tail{
		IndexExtentOffset:    uint64(indexOffset),
		FinalChainedChecksum: w.chain,
	}, w.opts.ChecksumAlgorithm)
	if err := w.f.Append(tail); err != nil {
		return fmt.Errorf("dsfile: write tail: %w", err)
	}
	w.offset += int64(len(tail))
	return nil
}

// Close finalizes the file: writes the index extent and the tail, syncs if
// requested, and closes the underlying file.
func (w *Writer) Close(fsync bool) error {
	if err := w.writeIndexAndTail(); err != nil {
		return err
	}
	if fsync {
		if err := w.f.Sync(); err != nil {
			return fmt.Errorf("dsfile: sync %s: %w", w.path, err)
		}
	}
	return w.f.Close()
}

// Rotate finalizes the current file (per Close's discipline) and opens a
// new file at newPath with a fresh library, index, and chain. Per the
// file-format's rotation contract, the pipeline queue is not drained
// around this call: Rotate only ever touches the writer's own file
// handle and in-memory state, so already-compressed items behind it in
// the queue continue uninterrupted into the new Writer the caller
// receives.
func (w *Writer) Rotate(newPath string, lib *typeregistry.Library, fsync bool) (*Writer, error) {
	if err := w.Close(fsync); err != nil {
		return nil, fmt.Errorf("dsfile: rotate: finalize %s: %w", w.path, err)
	}
	if fsync {
		if err := w.fsys.SyncDir(dirOf(w.path)); err != nil {
			return nil, fmt.Errorf("dsfile: rotate: sync dir: %w", err)
		}
	}
	return Create(w.fsys, newPath, lib, w.opts)
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
