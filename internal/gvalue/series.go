package gvalue

import (
	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

// Series is a cursor over one extent's rows: the current extent plus a row
// index, shared by every GeneralField bound to it. Grounded on
// data-series-server.cpp's ExtentSeries (setType/setExtent/more/next).
type Series struct {
	Type *typeregistry.ExtentType
	ext  *extent.Extent
	row  int
}

// NewSeries returns a Series for rows of type t, with no extent set yet.
func NewSeries(t *typeregistry.ExtentType) *Series {
	return &Series{Type: t}
}

// SetExtent points the series at e, resetting its cursor to the first row.
// If the series has no Type yet, it adopts e's type.
func (s *Series) SetExtent(e *extent.Extent) {
	s.ext = e
	s.row = 0
	if s.Type == nil && e != nil {
		s.Type = e.Type
	}
}

// ClearExtent detaches the series from its current extent.
func (s *Series) ClearExtent() {
	s.ext = nil
	s.row = 0
}

// Extent returns the series' current extent, or nil.
func (s *Series) Extent() *extent.Extent { return s.ext }

// More reports whether the cursor is positioned at a valid row.
func (s *Series) More() bool { return s.ext != nil && s.row < s.ext.NRecords() }

// Next advances the cursor by one row.
func (s *Series) Next() { s.row++ }

// Row returns the cursor's current row index.
func (s *Series) Row() int { return s.row }

// NewRecord appends a fresh zeroed row to the series' extent and positions
// the cursor at it, mirroring ExtentSeries::newRecord used by every output
// series in the operator pipeline.
func (s *Series) NewRecord() int {
	idx := s.ext.AppendRecord()
	s.row = idx
	return idx
}
