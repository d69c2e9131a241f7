package operator

import (
	"errors"
	"fmt"

	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/gvalue"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

// Project keeps only the named columns of source, in source's
// declaration order. Grounded on data-series-server.cpp's
// ProjectModule.
type Project struct {
	source      Iterator
	keepColumns []string

	inSeries, outSeries *gvalue.Series
	copier              *gvalue.Copier
}

// NewProject returns a Project over source keeping only keepColumns.
func NewProject(source Iterator, keepColumns []string) *Project {
	cols := make([]string, len(keepColumns))
	copy(cols, keepColumns)
	return &Project{source: source, keepColumns: cols}
}

func (p *Project) firstExtent(t *typeregistry.ExtentType) error {
	keep := make(map[string]bool, len(p.keepColumns))
	for _, c := range p.keepColumns {
		keep[c] = true
	}
	var fields []typeregistry.Field
	for _, f := range t.Fields {
		if keep[f.Name] {
			fields = append(fields, typeregistry.Field{Name: f.Name, Type: f.Type, Nullable: f.Nullable})
		}
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: project kept no columns", ErrInvalidExtraction)
	}
	outType, err := typeregistry.NewExtentType(t.Namespace, fmt.Sprintf("project(%s)", t.Name),
		t.VersionMajor, t.VersionMinor, fields)
	if err != nil {
		return err
	}
	p.inSeries = gvalue.NewSeries(t)
	p.outSeries = gvalue.NewSeries(outType)
	p.copier = gvalue.NewCopier(p.inSeries, p.outSeries)
	return p.copier.Prep()
}

// GetExtent implements Iterator.
func (p *Project) GetExtent() (*extent.Extent, error) {
	for {
		in, err := p.source.GetExtent()
		if err != nil {
			if errors.Is(err, ErrNoMoreExtents) {
				return p.flush()
			}
			return nil, err
		}
		if p.inSeries == nil {
			if err := p.firstExtent(in.Type); err != nil {
				return nil, err
			}
		}
		if p.outSeries.Extent() == nil {
			p.outSeries.SetExtent(extent.New(p.outSeries.Type))
		}
		for p.inSeries.SetExtent(in); p.inSeries.More(); p.inSeries.Next() {
			p.outSeries.NewRecord()
			if err := p.copier.CopyRecord(); err != nil {
				return nil, err
			}
		}
		if extentBytes(p.outSeries.Extent()) > maxExtentBytes {
			return p.flush()
		}
	}
}

// OutputType returns the row type Project emits, or nil before the
// first extent has been pulled from source.
func (p *Project) OutputType() *typeregistry.ExtentType {
	if p.outSeries == nil {
		return nil
	}
	return p.outSeries.Type
}

func (p *Project) flush() (*extent.Extent, error) {
	if p.outSeries == nil {
		return nil, ErrNoMoreExtents
	}
	out := p.outSeries.Extent()
	p.outSeries.ClearExtent()
	if out == nil {
		return nil, ErrNoMoreExtents
	}
	return out, nil
}
