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

// UnionSource is one input table to Union: ExtractValues maps a source
// column name to its output column name, the same rename-while-merging
// shape every Union input uses.
type UnionSource struct {
	Source        Iterator
	ExtractValues map[string]string
}

type unionState struct {
	src       UnionSource
	series    *gvalue.Series
	copier    *gvalue.Copier
	reverse   map[string]string // output name -> source name
	orderFields []*gvalue.Field
	exhausted bool
}

// Union merges several tables into one, ordered by orderColumns
// (ascending, by output column name), breaking ties in favor of the
// earlier-declared source. Grounded on data-series-server.cpp's
// UnionModule and its PriorityQueue-driven k-way merge.
type Union struct {
	sources      []UnionSource
	orderColumns []string

	states      []*unionState
	outSeries   *gvalue.Series
	queue       *unionQueue
	initialized bool
}

// NewUnion returns a Union over sources, ordered by orderColumns.
func NewUnion(sources []UnionSource, orderColumns []string) *Union {
	return &Union{sources: sources, orderColumns: orderColumns}
}

type unionQueue struct {
	u     *Union
	items []int
}

func (q *unionQueue) Len() int { return len(q.items) }
func (q *unionQueue) Less(i, j int) bool {
	return q.u.sourceLess(q.items[i], q.items[j])
}
func (q *unionQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *unionQueue) Push(x any)    { q.items = append(q.items, x.(int)) }
func (q *unionQueue) Pop() any {
	old := q.items
	n := len(old)
	x := old[n-1]
	q.items = old[:n-1]
	return x
}

// sourceLess reports whether source a's current row should be emitted
// before source b's, by comparing their live order-column values; ties
// go to the lower source index.
func (u *Union) sourceLess(a, b int) bool {
	sa, sb := u.states[a], u.states[b]
	for i := range sa.orderFields {
		va, err := sa.orderFields[i].Get()
		if err != nil {
			return false
		}
		vb, err := sb.orderFields[i].Get()
		if err != nil {
			return false
		}
		c, err := va.Compare(vb)
		if err != nil || c != 0 {
			return err == nil && c < 0
		}
	}
	return a < b
}

func (u *Union) init() error {
	if len(u.sources) == 0 {
		return fmt.Errorf("%w: union", ErrEmptySource)
	}
	u.states = make([]*unionState, len(u.sources))
	fieldByOutName := make(map[string]typeregistry.Field)

	for idx, src := range u.sources {
		st := &unionState{src: src}
		e, err := src.Source.GetExtent()
		if err != nil {
			if errors.Is(err, ErrNoMoreExtents) {
				st.exhausted = true
				u.states[idx] = st
				continue
			}
			return err
		}
		st.series = gvalue.NewSeries(e.Type)
		st.series.SetExtent(e)
		st.reverse = make(map[string]string, len(src.ExtractValues))

		for srcName, outName := range src.ExtractValues {
			st.reverse[outName] = srcName
			f, ok := e.Type.FieldByName(srcName)
			if !ok {
				return fmt.Errorf("%w: %s", ErrInvalidExtraction, srcName)
			}
			renamed := renamedField(f, outName)
			if existing, ok := fieldByOutName[outName]; ok {
				if existing.Type != renamed.Type || existing.Nullable != renamed.Nullable {
					return fmt.Errorf("%w: union column %q type mismatch across sources", ErrInvalidExtraction, outName)
				}
			} else {
				fieldByOutName[outName] = renamed
			}
		}

		st.orderFields = make([]*gvalue.Field, len(u.orderColumns))
		for i, col := range u.orderColumns {
			srcName, ok := st.reverse[col]
			if !ok {
				return fmt.Errorf("%w: order column %q not extracted by source %d", ErrInvalidExtraction, col, idx)
			}
			f, err := gvalue.NewField(st.series, srcName)
			if err != nil {
				return err
			}
			st.orderFields[i] = f
		}
		u.states[idx] = st
	}

	names := make([]string, 0, len(fieldByOutName))
	for n := range fieldByOutName {
		names = append(names, n)
	}
	sort.Strings(names)
	fields := make([]typeregistry.Field, len(names))
	for i, n := range names {
		fields[i] = fieldByOutName[n]
	}
	outType, err := typeregistry.NewExtentType("server.example.com", "union", 1, 0, fields)
	if err != nil {
		return err
	}
	u.outSeries = gvalue.NewSeries(outType)

	u.queue = &unionQueue{u: u}
	for idx, st := range u.states {
		if st.exhausted {
			continue
		}
		st.copier = gvalue.NewCopier(st.series, u.outSeries)
		if err := st.copier.PrepRenamed(st.reverse); err != nil {
			return err
		}
		heap.Push(u.queue, idx)
	}
	u.initialized = true
	return nil
}

// GetExtent implements Iterator.
func (u *Union) GetExtent() (*extent.Extent, error) {
	if !u.initialized {
		if err := u.init(); err != nil {
			return nil, err
		}
	}
	if u.outSeries.Extent() == nil {
		u.outSeries.SetExtent(extent.New(u.outSeries.Type))
	}
	for {
		if u.queue.Len() == 0 {
			return u.flush()
		}
		idx := heap.Pop(u.queue).(int)
		st := u.states[idx]

		u.outSeries.NewRecord()
		if err := st.copier.CopyRecord(); err != nil {
			return nil, err
		}

		st.series.Next()
		if !st.series.More() {
			next, err := st.src.Source.GetExtent()
			if err != nil {
				if errors.Is(err, ErrNoMoreExtents) {
					st.exhausted = true
				} else {
					return nil, err
				}
			} else {
				st.series.SetExtent(next)
			}
		}
		if !st.exhausted {
			heap.Push(u.queue, idx)
		}
		if extentBytes(u.outSeries.Extent()) > maxExtentBytes {
			return u.flush()
		}
	}
}

// OutputType returns the row type Union emits, or nil before the
// first extent has been pulled from any source.
func (u *Union) OutputType() *typeregistry.ExtentType {
	if u.outSeries == nil {
		return nil
	}
	return u.outSeries.Type
}

func (u *Union) flush() (*extent.Extent, error) {
	out := u.outSeries.Extent()
	u.outSeries.ClearExtent()
	if out == nil || out.NRecords() == 0 {
		return nil, ErrNoMoreExtents
	}
	return out, nil
}
