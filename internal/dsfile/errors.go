package dsfile

import "errors"

var (
	// ErrBadMagic is returned when the first 8 bytes of a file do not
	// match the magic value in either byte order.
	ErrBadMagic = errors.New("dsfile: bad magic")

	// ErrTruncatedTail is returned when a file is shorter than the
	// fixed-size tail record, or the tail's own magic copy doesn't match.
	ErrTruncatedTail = errors.New("dsfile: truncated tail")

	// ErrChainBroken is returned when the running chained checksum over
	// all extents read in order does not match the tail's stored value.
	ErrChainBroken = errors.New("dsfile: chained checksum broken at tail")

	// ErrNoMoreExtents is returned by Reader.NextExtent once every data
	// extent up to the index extent has been consumed.
	ErrNoMoreExtents = errors.New("dsfile: no more extents")

	// ErrTypeNameMismatch is returned by ReadExtentAt when the extent at
	// the given offset does not have the expected type name.
	ErrTypeNameMismatch = errors.New("dsfile: extent type name mismatch")
)
