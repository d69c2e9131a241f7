package operator

import (
	"errors"

	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/gvalue"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

// Select keeps rows from source matching a compiled where expression,
// preserving the source's row type. Grounded on
// data-series-server.cpp's SelectModule.
type Select struct {
	source       Iterator
	whereExprStr string

	inSeries, outSeries *gvalue.Series
	copier              *gvalue.Copier
	where               *gvalue.Compiled
}

// NewSelect returns a Select over source keeping only rows for which
// whereExpr evaluates true.
func NewSelect(source Iterator, whereExpr string) *Select {
	return &Select{source: source, whereExprStr: whereExpr}
}

func (s *Select) firstExtent(t *typeregistry.ExtentType) error {
	s.inSeries = gvalue.NewSeries(t)
	s.outSeries = gvalue.NewSeries(t)
	s.copier = gvalue.NewCopier(s.inSeries, s.outSeries)
	if err := s.copier.Prep(); err != nil {
		return err
	}
	expr, err := gvalue.Parse(s.whereExprStr)
	if err != nil {
		return err
	}
	compiled, err := expr.Compile(s.inSeries)
	if err != nil {
		return err
	}
	s.where = compiled
	return nil
}

// GetExtent implements Iterator.
func (s *Select) GetExtent() (*extent.Extent, error) {
	for {
		in, err := s.source.GetExtent()
		if err != nil {
			if errors.Is(err, ErrNoMoreExtents) {
				return s.flush()
			}
			return nil, err
		}
		if s.inSeries == nil {
			if err := s.firstExtent(in.Type); err != nil {
				return nil, err
			}
		}
		if s.outSeries.Extent() == nil {
			s.outSeries.SetExtent(extent.New(s.outSeries.Type))
		}
		for s.inSeries.SetExtent(in); s.inSeries.More(); s.inSeries.Next() {
			ok, err := s.where.EvalBool()
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			s.outSeries.NewRecord()
			if err := s.copier.CopyRecord(); err != nil {
				return nil, err
			}
		}
		if extentBytes(s.outSeries.Extent()) > maxExtentBytes {
			return s.flush()
		}
	}
}

// OutputType returns the row type Select emits, or nil before the
// first extent has been pulled from source.
func (s *Select) OutputType() *typeregistry.ExtentType {
	if s.outSeries == nil {
		return nil
	}
	return s.outSeries.Type
}

func (s *Select) flush() (*extent.Extent, error) {
	if s.outSeries == nil {
		return nil, ErrNoMoreExtents
	}
	out := s.outSeries.Extent()
	s.outSeries.ClearExtent()
	if out == nil {
		return nil, ErrNoMoreExtents
	}
	return out, nil
}
