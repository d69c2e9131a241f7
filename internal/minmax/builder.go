package minmax

import (
	"fmt"

	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/gvalue"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

// Builder accumulates one index row per data extent, computing each
// indexed column's [min,max] range and a sort value over the extent's
// rows. MinMaxIndexModule.cpp only ever scans an already-built index
// file; building one is not shown in the retrieved sources, so this is
// this port's own supplement, grounded on the same reserved schema
// (§6) the scanner reads.
type Builder struct {
	dataType      *typeregistry.ExtentType
	indexedFields []string
	sortField     string

	indexType *typeregistry.ExtentType
	series    *gvalue.Series
}

// NewBuilder returns a Builder that indexes dataType's indexedFields
// columns and records sortField as the scan's order-by column.
func NewBuilder(dataType *typeregistry.ExtentType, indexedFields []string, sortField string) (*Builder, error) {
	indexType, err := BuildIndexType(dataType, indexedFields, sortField)
	if err != nil {
		return nil, err
	}
	fields := make([]string, len(indexedFields))
	copy(fields, indexedFields)
	return &Builder{
		dataType:      dataType,
		indexedFields: fields,
		sortField:     sortField,
		indexType:     indexType,
		series:        gvalue.NewSeries(indexType),
	}, nil
}

// Type returns the index's ExtentType, for registering in the index
// file's library.
func (b *Builder) Type() *typeregistry.ExtentType { return b.indexType }

// columnRange scans e's rows for field name col, returning its
// [min,max] GeneralValue range. Null cells are skipped; an extent whose
// every row is null for col returns two null GeneralValues.
func columnRange(e *extent.Extent, col string) (gvalue.GeneralValue, gvalue.GeneralValue, error) {
	f, ok := e.Type.FieldByName(col)
	if !ok {
		return gvalue.GeneralValue{}, gvalue.GeneralValue{}, fmt.Errorf("%w: %q", ErrFieldNotFound, col)
	}
	min, max := gvalue.Null(), gvalue.Null()
	have := false
	for row := 0; row < e.NRecords(); row++ {
		v, err := gvalue.GetRow(e, row, f)
		if err != nil {
			return gvalue.GeneralValue{}, gvalue.GeneralValue{}, err
		}
		if v.IsNull() {
			continue
		}
		if !have {
			min, max = v, v
			have = true
			continue
		}
		if c, err := v.Compare(min); err != nil {
			return gvalue.GeneralValue{}, gvalue.GeneralValue{}, err
		} else if c < 0 {
			min = v
		}
		if c, err := v.Compare(max); err != nil {
			return gvalue.GeneralValue{}, gvalue.GeneralValue{}, err
		} else if c > 0 {
			max = v
		}
	}
	return min, max, nil
}

// AddExtent appends one index row describing the data extent e, which
// was (or will be) written at offset within filename.
func (b *Builder) AddExtent(filename string, offset int64, e *extent.Extent) error {
	if b.series.Extent() == nil {
		b.series.SetExtent(extent.New(b.indexType))
	}
	sortField, ok := e.Type.FieldByName(b.sortField)
	if !ok {
		return fmt.Errorf("%w: sort column %q", ErrFieldNotFound, b.sortField)
	}
	sortVal := gvalue.Null()
	if e.NRecords() > 0 {
		v, err := gvalue.GetRow(e, 0, sortField)
		if err != nil {
			return err
		}
		sortVal = v
	}

	out := b.series
	out.NewRecord()
	if err := mustSet(out, "filename", gvalue.FromVariable32([]byte(filename))); err != nil {
		return err
	}
	if err := mustSet(out, "extent_offset", gvalue.FromInt64(offset)); err != nil {
		return err
	}
	for _, col := range b.indexedFields {
		min, max, err := columnRange(e, col)
		if err != nil {
			return err
		}
		if err := mustSet(out, "min:"+col, min); err != nil {
			return err
		}
		if err := mustSet(out, "max:"+col, max); err != nil {
			return err
		}
	}
	return mustSet(out, b.sortField, sortVal)
}

func mustSet(s *gvalue.Series, name string, v gvalue.GeneralValue) error {
	f, err := gvalue.NewField(s, name)
	if err != nil {
		return err
	}
	return f.Set(v)
}

// Extent returns the index rows accumulated so far. The caller is
// responsible for writing it (and rotating to a fresh one, if it wants
// bounded extent sizes) through a pipeline.Sink.
func (b *Builder) Extent() *extent.Extent { return b.series.Extent() }
