package operator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/gvalue"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

// hjExtractor fills one output column: either from the buffered "a"
// value vector at a fixed position, or by reading a field bound to the
// live "b" row.
type hjExtractor struct {
	outName string
	out     *gvalue.Field
	useAVal bool
	aValPos int
	fromB   *gvalue.Field
}

func (e *hjExtractor) run(aVal gvalue.Vec) error {
	var v gvalue.GeneralValue
	if e.useAVal {
		v = aVal[e.aValPos]
	} else {
		var err error
		v, err = e.fromB.Get()
		if err != nil {
			return err
		}
	}
	return e.out.Set(v)
}

// HashJoin equi-joins a fully-buffered "a" table against a streamed
// "b" table. Grounded on data-series-server.cpp's HashJoinModule: "a"
// is read entirely into a hash map keyed by eqColumns before any "b"
// row is read, then every "b" row probes the map and one output row is
// emitted per match.
//
// eqColumns maps an "a" column name to the "b" column it must equal.
// keepColumns maps a "a."/"b."-prefixed source column spec to its
// output column name, mirroring the three extraction cases the
// original distinguishes: an "a" column that is not part of the
// equality key (read from the buffered value vector), an "a" column
// that IS part of the equality key (read live off "b", since by the
// time a row probes the map the matching "a" row is long gone), and a
// "b" column (read live off "b").
//
// maxARows bounds how many "a" rows may be buffered; <= 0 means
// unbounded. Exceeding a positive bound returns ErrTooManyLeftRows.
type HashJoin struct {
	aInput, bInput Iterator
	maxARows       int
	eqColumns      map[string]string
	keepColumns    map[string]string

	aType, bType        *typeregistry.ExtentType
	bSeries, outSeries  *gvalue.Series
	aEqFields, bEqFields []*gvalue.Field
	aValFields          []*gvalue.Field
	aNameToValPos       map[string]int

	extractors []*hjExtractor
	hashmap    map[string][]gvalue.Vec
}

// NewHashJoin returns a HashJoin reading its build side from aInput
// and its probe side from bInput.
func NewHashJoin(aInput, bInput Iterator, maxARows int, eqColumns, keepColumns map[string]string) *HashJoin {
	return &HashJoin{
		aInput: aInput, bInput: bInput, maxARows: maxARows,
		eqColumns: eqColumns, keepColumns: keepColumns,
	}
}

func readVec(fields []*gvalue.Field) (gvalue.Vec, error) {
	vec := make(gvalue.Vec, len(fields))
	for i, f := range fields {
		v, err := f.Get()
		if err != nil {
			return nil, err
		}
		vec[i] = v
	}
	return vec, nil
}

func (h *HashJoin) firstExtent(bType *typeregistry.ExtentType) error {
	h.bType = bType
	h.bSeries = gvalue.NewSeries(bType)

	aKeys := sortedKeys(h.eqColumns)
	h.bEqFields = make([]*gvalue.Field, 0, len(aKeys))
	for _, aName := range aKeys {
		f, err := gvalue.NewField(h.bSeries, h.eqColumns[aName])
		if err != nil {
			return err
		}
		h.bEqFields = append(h.bEqFields, f)
	}

	var aSeries *gvalue.Series
	h.hashmap = make(map[string][]gvalue.Vec)
	rowCount := 0
	for {
		aExt, err := h.aInput.GetExtent()
		if err != nil {
			if errors.Is(err, ErrNoMoreExtents) {
				break
			}
			return err
		}
		if aSeries == nil {
			h.aType = aExt.Type
			aSeries = gvalue.NewSeries(h.aType)
			if err := h.prepAFields(aSeries, aKeys); err != nil {
				return err
			}
		}
		for aSeries.SetExtent(aExt); aSeries.More(); aSeries.Next() {
			rowCount++
			if h.maxARows > 0 && rowCount > h.maxARows {
				return ErrTooManyLeftRows
			}
			key, err := readVec(h.aEqFields)
			if err != nil {
				return err
			}
			val, err := readVec(h.aValFields)
			if err != nil {
				return err
			}
			k := key.Key()
			h.hashmap[k] = append(h.hashmap[k], val)
		}
	}
	if aSeries == nil {
		return fmt.Errorf("%w: hash join a table", ErrEmptySource)
	}
	return h.setupOutput()
}

func (h *HashJoin) prepAFields(aSeries *gvalue.Series, aKeys []string) error {
	knownAEq := make(map[string]bool, len(aKeys))
	h.aEqFields = make([]*gvalue.Field, 0, len(aKeys))
	for _, aName := range aKeys {
		f, err := gvalue.NewField(aSeries, aName)
		if err != nil {
			return err
		}
		h.aEqFields = append(h.aEqFields, f)
		knownAEq[aName] = true
	}

	h.aNameToValPos = make(map[string]int)
	for _, spec := range sortedKeys(h.keepColumns) {
		if !strings.HasPrefix(spec, "a.") {
			continue
		}
		name := spec[2:]
		if knownAEq[name] {
			continue
		}
		if _, exists := h.aNameToValPos[name]; exists {
			continue
		}
		f, err := gvalue.NewField(aSeries, name)
		if err != nil {
			return err
		}
		h.aNameToValPos[name] = len(h.aValFields)
		h.aValFields = append(h.aValFields, f)
	}
	return nil
}

func (h *HashJoin) setupOutput() error {
	kcKeys := sortedKeys(h.keepColumns)
	var fields []typeregistry.Field
	extractors := make([]*hjExtractor, 0, len(kcKeys))

	for _, spec := range kcKeys {
		outName := h.keepColumns[spec]
		switch {
		case strings.HasPrefix(spec, "a."):
			name := spec[2:]
			if idx, ok := h.aNameToValPos[name]; ok { // case 1: buffered a value
				f, ok2 := h.aType.FieldByName(name)
				if !ok2 {
					return fmt.Errorf("%w: a.%s", ErrInvalidExtraction, name)
				}
				fields = append(fields, renamedField(f, outName))
				extractors = append(extractors, &hjExtractor{outName: outName, useAVal: true, aValPos: idx})
			} else if bName, ok := h.eqColumns[name]; ok { // case 2a: a eq column, read live off b
				f, ok2 := h.bType.FieldByName(bName)
				if !ok2 {
					return fmt.Errorf("%w: a.%s via b.%s", ErrInvalidExtraction, name, bName)
				}
				fields = append(fields, renamedField(f, outName))
				bf, err := gvalue.NewField(h.bSeries, bName)
				if err != nil {
					return err
				}
				extractors = append(extractors, &hjExtractor{outName: outName, fromB: bf})
			} else {
				return fmt.Errorf("%w: a.%s", ErrInvalidExtraction, name)
			}
		case strings.HasPrefix(spec, "b."): // case 2b
			name := spec[2:]
			f, ok2 := h.bType.FieldByName(name)
			if !ok2 {
				return fmt.Errorf("%w: b.%s", ErrInvalidExtraction, name)
			}
			fields = append(fields, renamedField(f, outName))
			bf, err := gvalue.NewField(h.bSeries, name)
			if err != nil {
				return err
			}
			extractors = append(extractors, &hjExtractor{outName: outName, fromB: bf})
		default:
			return fmt.Errorf("%w: %s", ErrInvalidExtraction, spec)
		}
	}
	if len(extractors) == 0 {
		return fmt.Errorf("%w: must extract at least one field", ErrInvalidExtraction)
	}

	outType, err := typeregistry.NewExtentType("server.example.com", fmt.Sprintf("hash-join(%s)", h.aType.Name),
		1, 0, fields)
	if err != nil {
		return err
	}
	h.outSeries = gvalue.NewSeries(outType)
	for _, e := range extractors {
		out, err := gvalue.NewField(h.outSeries, e.outName)
		if err != nil {
			return err
		}
		e.out = out
	}
	h.extractors = extractors
	return nil
}

func (h *HashJoin) processRow() error {
	key, err := readVec(h.bEqFields)
	if err != nil {
		return err
	}
	matches, ok := h.hashmap[key.Key()]
	if !ok {
		return nil
	}
	for _, aVal := range matches {
		h.outSeries.NewRecord()
		for _, e := range h.extractors {
			if err := e.run(aVal); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetExtent implements Iterator.
func (h *HashJoin) GetExtent() (*extent.Extent, error) {
	for {
		bExt, err := h.bInput.GetExtent()
		if err != nil {
			if errors.Is(err, ErrNoMoreExtents) {
				return h.flush()
			}
			return nil, err
		}
		if h.bType == nil {
			if err := h.firstExtent(bExt.Type); err != nil {
				return nil, err
			}
		}
		if h.outSeries.Extent() == nil {
			h.outSeries.SetExtent(extent.New(h.outSeries.Type))
		}
		for h.bSeries.SetExtent(bExt); h.bSeries.More(); h.bSeries.Next() {
			if err := h.processRow(); err != nil {
				return nil, err
			}
		}
		if extentBytes(h.outSeries.Extent()) > maxExtentBytes {
			return h.flush()
		}
	}
}

// OutputType returns the row type HashJoin emits, or nil before the
// first extent has been pulled from bInput.
func (h *HashJoin) OutputType() *typeregistry.ExtentType {
	if h.outSeries == nil {
		return nil
	}
	return h.outSeries.Type
}

func (h *HashJoin) flush() (*extent.Extent, error) {
	if h.outSeries == nil {
		return nil, ErrNoMoreExtents
	}
	out := h.outSeries.Extent()
	h.outSeries.ClearExtent()
	if out == nil {
		return nil, ErrNoMoreExtents
	}
	return out, nil
}
