package operator

import "github.com/aalhour/extentstore/internal/extent"

// SliceSource iterates a fixed in-memory list of extents. It stands in
// for a file-backed table source in tests and in-process pipelines.
type SliceSource struct {
	extents []*extent.Extent
	pos     int
}

// NewSliceSource returns a SliceSource yielding extents in order.
func NewSliceSource(extents ...*extent.Extent) *SliceSource {
	return &SliceSource{extents: extents}
}

// GetExtent implements Iterator.
func (s *SliceSource) GetExtent() (*extent.Extent, error) {
	if s.pos >= len(s.extents) {
		return nil, ErrNoMoreExtents
	}
	e := s.extents[s.pos]
	s.pos++
	return e, nil
}
