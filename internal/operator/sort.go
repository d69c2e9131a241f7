package operator

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"

	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/gvalue"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

// SortColumn names one column of a multi-column sort key.
type SortColumn struct {
	Name       string
	Descending bool
}

type sortedRun struct {
	ext     *extent.Extent
	offsets []int
	pos     int
}

// Sort totally orders source's rows by columns. Grounded on
// data-series-server.cpp's SortModule: every incoming extent's rows are
// first stable-sorted (its ExtentRowCompare) through a slice of row
// indices, leaving the extent itself unchanged, then the resulting
// per-extent runs are merged in row order.
//
// The original merges runs with a loser tree
// (__gnu_parallel::LoserTree); this merges them with a
// container/heap priority queue instead, the same k-way-merge
// strategy Union already uses here. The two give identical output
// order, so the substitution is cosmetic.
type Sort struct {
	source  Iterator
	columns []SortColumn

	rtype     *typeregistry.ExtentType
	colFields []typeregistry.Field
	outFields []*gvalue.Field
	outSeries *gvalue.Series

	runs        []*sortedRun
	queue       *sortQueue
	initialized bool
}

// NewSort returns a Sort over source ordered by columns.
func NewSort(source Iterator, columns []SortColumn) *Sort {
	cols := make([]SortColumn, len(columns))
	copy(cols, columns)
	return &Sort{source: source, columns: cols}
}

type rowSorter struct {
	s       *Sort
	ext     *extent.Extent
	offsets []int
	err     error
}

func (r *rowSorter) Len() int      { return len(r.offsets) }
func (r *rowSorter) Swap(i, j int) { r.offsets[i], r.offsets[j] = r.offsets[j], r.offsets[i] }
func (r *rowSorter) Less(i, j int) bool {
	c, err := r.s.crossCompare(r.ext, r.offsets[i], r.ext, r.offsets[j])
	if err != nil && r.err == nil {
		r.err = err
	}
	return c < 0
}

// crossCompare compares row ra of ea against row rb of eb by columns,
// honoring per-column ascending/descending order.
func (s *Sort) crossCompare(ea *extent.Extent, ra int, eb *extent.Extent, rb int) (int, error) {
	for i, col := range s.columns {
		av, err := gvalue.GetRow(ea, ra, s.colFields[i])
		if err != nil {
			return 0, err
		}
		bv, err := gvalue.GetRow(eb, rb, s.colFields[i])
		if err != nil {
			return 0, err
		}
		c, err := av.Compare(bv)
		if err != nil {
			return 0, err
		}
		if c == 0 {
			continue
		}
		if col.Descending {
			c = -c
		}
		return c, nil
	}
	return 0, nil
}

type sortQueue struct {
	s     *Sort
	items []int
}

func (q *sortQueue) Len() int { return len(q.items) }
func (q *sortQueue) Less(i, j int) bool {
	return q.s.runLess(q.items[i], q.items[j])
}
func (q *sortQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *sortQueue) Push(x any)    { q.items = append(q.items, x.(int)) }
func (q *sortQueue) Pop() any {
	old := q.items
	n := len(old)
	x := old[n-1]
	q.items = old[:n-1]
	return x
}

// runLess reports whether run a's current row sorts before run b's,
// breaking ties in favor of the earlier run (stable across runs).
func (s *Sort) runLess(a, b int) bool {
	ra, rb := s.runs[a], s.runs[b]
	c, err := s.crossCompare(ra.ext, ra.offsets[ra.pos], rb.ext, rb.offsets[rb.pos])
	if err != nil {
		return false
	}
	if c != 0 {
		return c < 0
	}
	return a < b
}

func (s *Sort) init() error {
	for {
		e, err := s.source.GetExtent()
		if err != nil {
			if errors.Is(err, ErrNoMoreExtents) {
				break
			}
			return err
		}
		if s.rtype == nil {
			s.rtype = e.Type
			s.colFields = make([]typeregistry.Field, len(s.columns))
			for i, c := range s.columns {
				f, ok := s.rtype.FieldByName(c.Name)
				if !ok {
					return fmt.Errorf("%w: %s", ErrInvalidExtraction, c.Name)
				}
				s.colFields[i] = f
			}
		}
		n := e.NRecords()
		offsets := make([]int, n)
		for i := range offsets {
			offsets[i] = i
		}
		rs := &rowSorter{s: s, ext: e, offsets: offsets}
		sort.Stable(rs)
		if rs.err != nil {
			return rs.err
		}
		s.runs = append(s.runs, &sortedRun{ext: e, offsets: offsets})
	}
	if s.rtype == nil {
		return fmt.Errorf("%w: sort", ErrEmptySource)
	}
	s.outSeries = gvalue.NewSeries(s.rtype)
	s.outFields = make([]*gvalue.Field, len(s.rtype.Fields))
	return nil
}

func (s *Sort) copyRow(e *extent.Extent, row int) error {
	s.outSeries.NewRecord()
	for i, f := range s.rtype.Fields {
		v, err := gvalue.GetRow(e, row, f)
		if err != nil {
			return err
		}
		if s.outFields[i] == nil {
			of, err := gvalue.NewField(s.outSeries, f.Name)
			if err != nil {
				return err
			}
			s.outFields[i] = of
		}
		if err := s.outFields[i].Set(v); err != nil {
			return err
		}
	}
	return nil
}

// GetExtent implements Iterator.
func (s *Sort) GetExtent() (*extent.Extent, error) {
	if !s.initialized {
		if err := s.init(); err != nil {
			return nil, err
		}
		s.initialized = true
		s.queue = &sortQueue{s: s}
		for i, r := range s.runs {
			if len(r.offsets) > 0 {
				heap.Push(s.queue, i)
			}
		}
	}
	if s.outSeries.Extent() == nil {
		s.outSeries.SetExtent(extent.New(s.outSeries.Type))
	}
	for s.queue.Len() > 0 {
		i := heap.Pop(s.queue).(int)
		r := s.runs[i]
		if err := s.copyRow(r.ext, r.offsets[r.pos]); err != nil {
			return nil, err
		}
		r.pos++
		if r.pos < len(r.offsets) {
			heap.Push(s.queue, i)
		}
		if extentBytes(s.outSeries.Extent()) > maxExtentBytes {
			return s.flush()
		}
	}
	return s.flush()
}

// OutputType returns the row type Sort emits, or nil before the first
// extent has been pulled from source.
func (s *Sort) OutputType() *typeregistry.ExtentType {
	if s.outSeries == nil {
		return nil
	}
	return s.outSeries.Type
}

func (s *Sort) flush() (*extent.Extent, error) {
	out := s.outSeries.Extent()
	s.outSeries.ClearExtent()
	if out == nil || out.NRecords() == 0 {
		return nil, ErrNoMoreExtents
	}
	return out, nil
}
