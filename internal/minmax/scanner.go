package minmax

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aalhour/extentstore/internal/dsfile"
	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/gvalue"
	"github.com/aalhour/extentstore/internal/operator"
	"github.com/aalhour/extentstore/vfs"
)

// keptExtent mirrors MinMaxIndexModule.cpp's kept_extent: the file and
// offset to fetch, plus the sort value used to order the final scan.
type keptExtent struct {
	filename string
	offset   int64
	sortVal  gvalue.GeneralValue
}

// Scanner is a pull source over the subset of a data series' extents
// whose indexed range overlaps a query predicate, emitted in sort-key
// order. It implements operator.Iterator.
//
// Grounded on MinMaxIndexModule.cpp's two-phase shape: init() reads the
// whole index file up front to build and sort the kept list, then
// lockedGetCompressedExtent() walks it one entry at a time, opening (and
// caching) a DataSeriesSource per distinct filename.
type Scanner struct {
	fsys         vfs.FS
	dataTypeName string
	readerOpts   dsfile.ReaderOptions

	kept []keptExtent
	pos  int

	readers map[string]*dsfile.Reader
}

// NewScanner opens indexPath (a file of type IndexTypeName(dataTypeName)),
// evaluates every row's selectors under mode, and returns a Scanner over
// the surviving extents sorted by sortField.
func NewScanner(fsys vfs.FS, indexPath, dataTypeName string, selectors []Selector, mode Mode, sortField string, readerOpts dsfile.ReaderOptions) (*Scanner, error) {
	if len(selectors) == 0 {
		return nil, ErrNoSelectors
	}
	idx, err := dsfile.Open(fsys, indexPath, readerOpts)
	if err != nil {
		return nil, fmt.Errorf("minmax: open index %s: %w", indexPath, err)
	}
	defer idx.Close()

	series := gvalue.NewSeries(nil)
	var (
		filenameField *gvalue.Field
		offsetField   *gvalue.Field
		sortValField  *gvalue.Field
		minFields     = make([]*gvalue.Field, len(selectors))
		maxFields     = make([]*gvalue.Field, len(selectors))
	)

	var kept []keptExtent
	for {
		e, err := idx.NextExtent()
		if err != nil {
			if errors.Is(err, dsfile.ErrNoMoreExtents) {
				break
			}
			return nil, err
		}
		series.SetExtent(e)
		if filenameField == nil {
			if filenameField, err = gvalue.NewField(series, "filename"); err != nil {
				return nil, err
			}
			if offsetField, err = gvalue.NewField(series, "extent_offset"); err != nil {
				return nil, err
			}
			if sortValField, err = gvalue.NewField(series, sortField); err != nil {
				return nil, err
			}
			for i, sel := range selectors {
				if minFields[i], err = gvalue.NewField(series, "min:"+sel.Column); err != nil {
					return nil, err
				}
				if maxFields[i], err = gvalue.NewField(series, "max:"+sel.Column); err != nil {
					return nil, err
				}
			}
		}
		for ; series.More(); series.Next() {
			keep, err := rowOverlaps(selectors, minFields, maxFields, mode)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
			filename, err := filenameField.Get()
			if err != nil {
				return nil, err
			}
			offset, err := offsetField.Get()
			if err != nil {
				return nil, err
			}
			sortVal, err := sortValField.Get()
			if err != nil {
				return nil, err
			}
			kept = append(kept, keptExtent{
				filename: string(filename.Variable32()),
				offset:   offset.Int64(),
				sortVal:  sortVal,
			})
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		c, err := kept[i].sortVal.Compare(kept[j].sortVal)
		if err != nil {
			return false
		}
		return c < 0
	})

	return &Scanner{
		fsys:         fsys,
		dataTypeName: dataTypeName,
		readerOpts:   readerOpts,
		kept:         kept,
		readers:      make(map[string]*dsfile.Reader),
	}, nil
}

// rowOverlaps evaluates every selector's overlap test against the index
// row currently under the cursor, combining them per mode.
func rowOverlaps(selectors []Selector, minFields, maxFields []*gvalue.Field, mode Mode) (bool, error) {
	allOverlap := true
	anyOverlap := false
	for i, sel := range selectors {
		min, err := minFields[i].Get()
		if err != nil {
			return false, err
		}
		max, err := maxFields[i].Get()
		if err != nil {
			return false, err
		}
		ok, err := IntervalsOverlap(min, max, sel.Min, sel.Max)
		if err != nil {
			return false, err
		}
		if ok {
			anyOverlap = true
		} else {
			allOverlap = false
			if mode == ModeAllOverlap {
				break
			}
		}
	}
	if mode == ModeAnyOverlap {
		return anyOverlap, nil
	}
	return allOverlap, nil
}

func (s *Scanner) readerFor(filename string) (*dsfile.Reader, error) {
	if r, ok := s.readers[filename]; ok {
		return r, nil
	}
	r, err := dsfile.Open(s.fsys, filename, s.readerOpts)
	if err != nil {
		return nil, fmt.Errorf("minmax: open data file %s: %w", filename, err)
	}
	s.readers[filename] = r
	return r, nil
}

// GetExtent implements operator.Iterator: it fetches the next kept
// extent by offset, independent of that file's own sequential chain
// (the same use ReadExtentAt documents), opening a new reader per
// distinct filename the first time it is seen.
func (s *Scanner) GetExtent() (*extent.Extent, error) {
	if s.pos >= len(s.kept) {
		return nil, operator.ErrNoMoreExtents
	}
	k := s.kept[s.pos]
	s.pos++
	r, err := s.readerFor(k.filename)
	if err != nil {
		return nil, err
	}
	return r.ReadExtentAt(k.offset, s.dataTypeName)
}

// Close closes every data-file reader the scan opened.
func (s *Scanner) Close() error {
	var firstErr error
	for _, r := range s.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
