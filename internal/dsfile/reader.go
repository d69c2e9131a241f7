package dsfile

import (
	"fmt"

	"github.com/aalhour/extentstore/internal/codec"
	"github.com/aalhour/extentstore/internal/dschecksum"
	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/typeregistry"
	"github.com/aalhour/extentstore/vfs"
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	ChecksumAlgorithm dschecksum.Algorithm
	// VerifyChecksums disables checksum and chain verification when
	// false, matching the relaxed end of the package-level ReadChecks
	// levels a caller may have selected.
	VerifyChecksums bool
}

// DefaultReaderOptions returns ReaderOptions with full verification on.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{ChecksumAlgorithm: dschecksum.AlgorithmAdler32, VerifyChecksums: true}
}

// IndexEntry is one row of a file's trailing index extent: a data
// extent's byte offset and the name of the type it was packed against.
type IndexEntry struct {
	Offset   int64
	TypeName string
}

// Reader opens a file written by Writer and streams its data extents in
// order, or fetches any one of them directly by offset.
type Reader struct {
	f    vfs.RandomAccessFile
	opts ReaderOptions

	needBitflip bool
	library     *typeregistry.Library
	tail        Tail
	entries     []IndexEntry

	dataStart int64
	cursor    int64
	nextEntry int
	chain     uint32
	exhausted bool
}

// Open opens path, reads its tail and type library, and returns a Reader
// positioned at the first data extent.
func Open(fsys vfs.FS, path string, opts ReaderOptions) (*Reader, error) {
	f, err := fsys.OpenRandomAccess(path)
	if err != nil {
		return nil, fmt.Errorf("dsfile: open %s: %w", path, err)
	}
	r := &Reader{f: f, opts: opts}
	if err := r.init(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readAt(off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := r.f.ReadAt(buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *Reader) init() error {
	size := r.f.Size()
	if size < magicSize+tailSize {
		return ErrTruncatedTail
	}

	magic, err := r.readAt(0, magicSize)
	if err != nil {
		return fmt.Errorf("dsfile: read magic: %w", err)
	}
	needBitflip, err := detectByteOrder(magic)
	if err != nil {
		return err
	}
	r.needBitflip = needBitflip

	tailBuf, err := r.readAt(size-tailSize, tailSize)
	if err != nil {
		return fmt.Errorf("dsfile: read tail: %w", err)
	}
	tail, err := DecodeTail(tailBuf, r.opts.ChecksumAlgorithm, needBitflip)
	if err != nil {
		return err
	}
	r.tail = tail

	libMetaLib := typeregistry.NewLibrary()
	_ = libMetaLib.Register(libraryExtentType)
	libExtent, libTotalSize, _, err := r.readExtentAt(magicSize, libMetaLib)
	if err != nil {
		return fmt.Errorf("dsfile: read library extent: %w", err)
	}
	library, err := parseLibraryExtent(libExtent)
	if err != nil {
		return err
	}
	r.library = library
	r.dataStart = magicSize + int64(libTotalSize)
	r.cursor = r.dataStart

	idxMetaLib := typeregistry.NewLibrary()
	_ = idxMetaLib.Register(indexExtentType)
	indexExtent, _, _, err := r.readExtentAt(int64(tail.IndexExtentOffset), idxMetaLib)
	if err != nil {
		return fmt.Errorf("dsfile: read index extent: %w", err)
	}
	entries, err := readIndexEntries(indexExtent)
	if err != nil {
		return err
	}
	r.entries = make([]IndexEntry, len(entries))
	for i, e := range entries {
		r.entries[i] = IndexEntry{Offset: e.Offset, TypeName: e.TypeName}
	}
	return nil
}

// readExtentAt reads and unpacks the extent whose packed header starts at
// off, resolving its type against lib. Returns the extent, its total
// on-disk size (header + padded name + padded fixed + padded variable),
// and the extent's stored chained checksum. A read at an arbitrary offset
// has no running chain to check against, so the previous chain is taken
// from the header itself (stored chain XOR fixed XOR variable checksum);
// header and body checksums are still verified. Callers doing sequential
// chain verification supply their own running chain to codec.Unpack
// directly instead.
func (r *Reader) readExtentAt(off int64, lib *typeregistry.Library) (*extent.Extent, int, uint32, error) {
	header, err := r.readAt(off, codecHeaderSize)
	if err != nil {
		return nil, 0, 0, err
	}
	total := peekExtentTotalSize(header, r.needBitflip)
	buf, err := r.readAt(off, total)
	if err != nil {
		return nil, 0, 0, err
	}
	previousChain := dschecksum.Chain(
		decodeFlip32(header[12:], r.needBitflip),
		decodeFlip32(header[4:], r.needBitflip),
		decodeFlip32(header[8:], r.needBitflip),
	)
	e, chain, err := codec.Unpack(buf, codec.UnpackOptions{
		Library:           lib,
		ChecksumAlgorithm: r.opts.ChecksumAlgorithm,
		PreviousChain:     previousChain,
		VerifyChecksums:   r.opts.VerifyChecksums,
		NeedBitflip:       r.needBitflip,
	})
	if err != nil {
		return nil, 0, 0, err
	}
	return e, total, chain, nil
}

// Library returns the file's type library.
func (r *Reader) Library() *typeregistry.Library { return r.library }

// Entries returns the file's index, one entry per data extent in
// on-disk order.
func (r *Reader) Entries() []IndexEntry { return r.entries }

// NextExtent pulls the next data extent in file order, verifying its
// checksums and folding it into the running chain. Returns
// ErrNoMoreExtents once every data extent has been consumed; on the last
// extent it also verifies the running chain matches the tail's stored
// value, returning ErrChainBroken if not.
func (r *Reader) NextExtent() (*extent.Extent, error) {
	if r.exhausted || r.nextEntry >= len(r.entries) {
		r.exhausted = true
		return nil, ErrNoMoreExtents
	}
	header, err := r.readAt(r.cursor, codecHeaderSize)
	if err != nil {
		return nil, err
	}
	total := peekExtentTotalSize(header, r.needBitflip)
	buf, err := r.readAt(r.cursor, total)
	if err != nil {
		return nil, err
	}
	e, chain, err := codec.Unpack(buf, codec.UnpackOptions{
		Library:           r.library,
		ChecksumAlgorithm: r.opts.ChecksumAlgorithm,
		PreviousChain:     r.chain,
		VerifyChecksums:   r.opts.VerifyChecksums,
		NeedBitflip:       r.needBitflip,
	})
	if err != nil {
		return nil, err
	}
	r.chain = chain
	r.cursor += int64(total)
	r.nextEntry++

	if r.nextEntry == len(r.entries) {
		r.exhausted = true
		if r.opts.VerifyChecksums && r.chain != r.tail.FinalChainedChecksum {
			return nil, ErrChainBroken
		}
	}
	return e, nil
}

// ReadExtentAt decompresses the extent whose header starts at offset,
// independent of the sequential cursor and running chain. typeName must
// match the extent's actual type, or ErrTypeNameMismatch is returned.
func (r *Reader) ReadExtentAt(offset int64, typeName string) (*extent.Extent, error) {
	e, _, _, err := r.readExtentAt(offset, r.library)
	if err != nil {
		return nil, err
	}
	if e.Type.Name != typeName {
		return nil, fmt.Errorf("%w: at %d, got %q want %q", ErrTypeNameMismatch, offset, e.Type.Name, typeName)
	}
	return e, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}
