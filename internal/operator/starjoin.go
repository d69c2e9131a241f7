package operator

import (
	"errors"
	"fmt"

	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/gvalue"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

// Dimension is a small lookup table loaded entirely into memory before
// StarJoin streams the fact table, keyed by KeyColumns with
// ValueColumns available for extraction. Grounded on
// data-series-server.cpp's Dimension/SJM_Dimension/DimensionModule.
//
// Unlike the original, which lets several dimensions share one
// underlying source table (deduplicating the TypeIndexModule), each
// Dimension here owns its own Source iterator; the server layer is
// responsible for giving two dimensions backed by the same table their
// own freshly opened readers.
type Dimension struct {
	Name         string
	Source       Iterator
	KeyColumns   []string
	ValueColumns []string
}

// DimensionJoin binds one Dimension into the fact stream: FactKeyColumns
// names the fact-table columns to probe the dimension with, positionally
// matching the dimension's KeyColumns, and ExtractValues maps a
// dimension value column name to its output column name.
type DimensionJoin struct {
	DimensionName  string
	FactKeyColumns []string
	ExtractValues  map[string]string
}

type loadedDimension struct {
	name     string
	data     map[string]gvalue.Vec
	valuePos map[string]int
	dimType  *typeregistry.ExtentType
}

// MissPolicy selects what StarJoin does with a fact row whose join key
// has no matching dimension row.
type MissPolicy int

const (
	// MissSkipRow drops the fact row entirely. The default.
	MissSkipRow MissPolicy = iota
	// MissLeavePrevious reuses the last successfully matched value for
	// that dimension's columns (null, if no row has matched it yet).
	MissLeavePrevious
	// MissNull emits null for that dimension's columns.
	MissNull
)

type sjJoin struct {
	dim           *loadedDimension
	factKeyFields []*gvalue.Field
	extractors    []*hjExtractor
	prevMatched   gvalue.Vec
	hasPrev       bool
}

// StarJoin streams a fact table, enriching each row with values pulled
// from one or more pre-loaded Dimension tables. Grounded on
// data-series-server.cpp's StarJoinModule.
type StarJoin struct {
	factInput   Iterator
	dimensions  []Dimension
	factColumns map[string]string // fact column name -> output column name
	joins       []DimensionJoin
	missPolicy  MissPolicy

	factType              *typeregistry.ExtentType
	factSeries, outSeries *gvalue.Series
	factExtractors        []*hjExtractor
	sjJoins               []*sjJoin

	loaded bool
}

// NewStarJoin returns a StarJoin over factInput, joined against
// dimensions as described by joins, keeping factColumns (fact column
// name -> output name) from the fact table itself. missPolicy governs
// what happens when a fact row's join key misses a dimension.
func NewStarJoin(factInput Iterator, dimensions []Dimension, factColumns map[string]string, joins []DimensionJoin, missPolicy MissPolicy) *StarJoin {
	return &StarJoin{factInput: factInput, dimensions: dimensions, factColumns: factColumns, joins: joins, missPolicy: missPolicy}
}

func (sj *StarJoin) loadDimensions() (map[string]*loadedDimension, error) {
	byName := make(map[string]*loadedDimension, len(sj.dimensions))
	for _, d := range sj.dimensions {
		ld, err := loadDimension(d)
		if err != nil {
			return nil, err
		}
		byName[d.Name] = ld
	}
	used := make(map[string]bool, len(sj.joins))
	for _, j := range sj.joins {
		if _, ok := byName[j.DimensionName]; !ok {
			return nil, fmt.Errorf("%w: %q used but not declared", ErrUnknownDimension, j.DimensionName)
		}
		used[j.DimensionName] = true
	}
	for name := range byName {
		if !used[name] {
			return nil, fmt.Errorf("%w: %q declared but never joined", ErrUnknownDimension, name)
		}
	}
	return byName, nil
}

func loadDimension(d Dimension) (*loadedDimension, error) {
	ld := &loadedDimension{name: d.Name, data: make(map[string]gvalue.Vec)}
	var series *gvalue.Series
	var keyFields, valFields []*gvalue.Field
	for {
		e, err := d.Source.GetExtent()
		if err != nil {
			if errors.Is(err, ErrNoMoreExtents) {
				break
			}
			return nil, err
		}
		if series == nil {
			ld.dimType = e.Type
			series = gvalue.NewSeries(e.Type)
			keyFields = make([]*gvalue.Field, len(d.KeyColumns))
			for i, c := range d.KeyColumns {
				f, err := gvalue.NewField(series, c)
				if err != nil {
					return nil, err
				}
				keyFields[i] = f
			}
			ld.valuePos = make(map[string]int, len(d.ValueColumns))
			valFields = make([]*gvalue.Field, len(d.ValueColumns))
			for i, c := range d.ValueColumns {
				f, err := gvalue.NewField(series, c)
				if err != nil {
					return nil, err
				}
				valFields[i] = f
				ld.valuePos[c] = i
			}
		}
		for series.SetExtent(e); series.More(); series.Next() {
			key, err := readVec(keyFields)
			if err != nil {
				return nil, err
			}
			val, err := readVec(valFields)
			if err != nil {
				return nil, err
			}
			ld.data[key.Key()] = val
		}
	}
	if series == nil {
		return nil, fmt.Errorf("%w: dimension %q", ErrEmptySource, d.Name)
	}
	return ld, nil
}

func (sj *StarJoin) firstExtent(factType *typeregistry.ExtentType) error {
	sj.factType = factType
	sj.factSeries = gvalue.NewSeries(factType)

	byName, err := sj.loadDimensions()
	if err != nil {
		return err
	}

	var fields []typeregistry.Field
	var factExtractors []*hjExtractor
	for _, spec := range sortedKeys(sj.factColumns) {
		outName := sj.factColumns[spec]
		f, ok := factType.FieldByName(spec)
		if !ok {
			return fmt.Errorf("%w: fact.%s", ErrInvalidExtraction, spec)
		}
		fields = append(fields, renamedField(f, outName))
		ff, err := gvalue.NewField(sj.factSeries, spec)
		if err != nil {
			return err
		}
		factExtractors = append(factExtractors, &hjExtractor{outName: outName, fromB: ff})
	}

	var sjJoins []*sjJoin
	for _, j := range sj.joins {
		dim := byName[j.DimensionName]
		keyFields := make([]*gvalue.Field, len(j.FactKeyColumns))
		for i, c := range j.FactKeyColumns {
			f, err := gvalue.NewField(sj.factSeries, c)
			if err != nil {
				return err
			}
			keyFields[i] = f
		}
		var extractors []*hjExtractor
		for _, valCol := range sortedKeys(j.ExtractValues) {
			outName := j.ExtractValues[valCol]
			pos, ok := dim.valuePos[valCol]
			if !ok {
				return fmt.Errorf("%w: %s.%s", ErrInvalidExtraction, j.DimensionName, valCol)
			}
			f, ok := dim.dimType.FieldByName(valCol)
			if !ok {
				return fmt.Errorf("%w: %s.%s", ErrInvalidExtraction, j.DimensionName, valCol)
			}
			// Always nullable: a miss under MissLeavePrevious (before any
			// match) or MissNull must be able to store null here,
			// regardless of the dimension column's own nullability.
			fields = append(fields, typeregistry.Field{Name: outName, Type: f.Type, Nullable: true})
			extractors = append(extractors, &hjExtractor{outName: outName, useAVal: true, aValPos: pos})
		}
		sjJoins = append(sjJoins, &sjJoin{dim: dim, factKeyFields: keyFields, extractors: extractors})
	}

	outType, err := typeregistry.NewExtentType("server.example.com", "star-join", 1, 0, fields)
	if err != nil {
		return err
	}
	sj.outSeries = gvalue.NewSeries(outType)
	for _, e := range factExtractors {
		out, err := gvalue.NewField(sj.outSeries, e.outName)
		if err != nil {
			return err
		}
		e.out = out
	}
	for _, j := range sjJoins {
		for _, e := range j.extractors {
			out, err := gvalue.NewField(sj.outSeries, e.outName)
			if err != nil {
				return err
			}
			e.out = out
		}
	}
	sj.factExtractors = factExtractors
	sj.sjJoins = sjJoins
	return nil
}

// resolveJoin probes j's dimension with the fact row's current key,
// returning the matched value vector, or (nil, true) when the row
// should be skipped entirely (MissSkipRow), or (nil, false) with a
// nil vec standing for "emit null" (MissLeavePrevious with no prior
// match yet, or MissNull).
func (sj *StarJoin) resolveJoin(j *sjJoin) (vec gvalue.Vec, skip bool, err error) {
	key, err := readVec(j.factKeyFields)
	if err != nil {
		return nil, false, err
	}
	val, ok := j.dim.data[key.Key()]
	if ok {
		j.prevMatched, j.hasPrev = val, true
		return val, false, nil
	}
	switch sj.missPolicy {
	case MissSkipRow:
		return nil, true, nil
	case MissLeavePrevious:
		if j.hasPrev {
			return j.prevMatched, false, nil
		}
		return nil, false, nil
	case MissNull:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("%w: %s", ErrDimensionKeyNotFound, j.dim.name)
	}
}

func (sj *StarJoin) processRow() error {
	matched := make([]gvalue.Vec, len(sj.sjJoins))
	for i, j := range sj.sjJoins {
		val, skip, err := sj.resolveJoin(j)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}
		matched[i] = val
	}

	sj.outSeries.NewRecord()
	for _, e := range sj.factExtractors {
		if err := e.run(nil); err != nil {
			return err
		}
	}
	for i, j := range sj.sjJoins {
		for _, e := range j.extractors {
			if matched[i] == nil {
				if err := e.out.Set(gvalue.Null()); err != nil {
					return err
				}
				continue
			}
			if err := e.run(matched[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetExtent implements Iterator.
func (sj *StarJoin) GetExtent() (*extent.Extent, error) {
	for {
		e, err := sj.factInput.GetExtent()
		if err != nil {
			if errors.Is(err, ErrNoMoreExtents) {
				return sj.flush()
			}
			return nil, err
		}
		if sj.factSeries == nil {
			if err := sj.firstExtent(e.Type); err != nil {
				return nil, err
			}
		}
		if sj.outSeries.Extent() == nil {
			sj.outSeries.SetExtent(extent.New(sj.outSeries.Type))
		}
		for sj.factSeries.SetExtent(e); sj.factSeries.More(); sj.factSeries.Next() {
			if err := sj.processRow(); err != nil {
				return nil, err
			}
		}
		if extentBytes(sj.outSeries.Extent()) > maxExtentBytes {
			return sj.flush()
		}
	}
}

// OutputType returns the row type StarJoin emits, or nil before the
// first extent has been pulled from factInput.
func (sj *StarJoin) OutputType() *typeregistry.ExtentType {
	if sj.outSeries == nil {
		return nil
	}
	return sj.outSeries.Type
}

func (sj *StarJoin) flush() (*extent.Extent, error) {
	if sj.outSeries == nil {
		return nil, ErrNoMoreExtents
	}
	out := sj.outSeries.Extent()
	sj.outSeries.ClearExtent()
	if out == nil {
		return nil, ErrNoMoreExtents
	}
	return out, nil
}
