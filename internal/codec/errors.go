package codec

import "errors"

var (
	// ErrTruncated is returned when a packed buffer is shorter than its
	// own header claims.
	ErrTruncated = errors.New("codec: truncated extent buffer")

	// ErrBadHeaderChecksum is returned when the header checksum does not
	// match the recomputed value.
	ErrBadHeaderChecksum = errors.New("codec: bad header checksum")

	// ErrBadBodyChecksum is returned when the fixed or variable buffer
	// checksum does not match the recomputed value.
	ErrBadBodyChecksum = errors.New("codec: bad body checksum")

	// ErrChainBroken is returned when the recomputed chained checksum
	// does not match the value stored in the extent header.
	ErrChainBroken = errors.New("codec: chained checksum broken")
)
