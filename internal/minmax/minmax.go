// Package minmax implements the min/max-indexed scan: a reserved index
// file schema recording, per data extent, the byte range it occupies and
// the [min,max] interval its indexed columns span, plus a scanner that
// keeps only the extents whose interval overlaps a query predicate and
// emits them in sort-key order.
//
// Grounded on _examples/original_source/src/module/MinMaxIndexModule.cpp:
// intervalOverlap/inrange (ported here as IntervalsOverlap), the
// selector/kept_extent shape, and the use_or flag (this port's Mode).
package minmax

import "github.com/aalhour/extentstore/internal/gvalue"

// Mode selects how a scan with multiple selectors combines their overlap
// tests: AllOverlap keeps an extent only if every selector's interval
// overlaps, AnyOverlap keeps it if any one does.
type Mode int

const (
	// ModeAllOverlap requires every Selector to overlap (use_or=false).
	ModeAllOverlap Mode = iota
	// ModeAnyOverlap requires at least one Selector to overlap (use_or=true).
	ModeAnyOverlap
)

// Selector is one overlap predicate: keep extents whose indexed
// [min,max] range for Column intersects [Min,Max].
type Selector struct {
	Column   string
	Min, Max gvalue.GeneralValue
}

// inrange reports whether v falls within [lo,hi] inclusive, per
// MinMaxIndexModule.cpp's static inrange (minrange <= v && v <= maxrange).
func inrange(v, lo, hi gvalue.GeneralValue) (bool, error) {
	c1, err := lo.Compare(v)
	if err != nil {
		return false, err
	}
	c2, err := v.Compare(hi)
	if err != nil {
		return false, err
	}
	return c1 <= 0 && c2 <= 0, nil
}

// IntervalsOverlap reports whether [aMin,aMax] and [bMin,bMax] intersect,
// per MinMaxIndexModule.cpp's static intervalOverlap: true iff any of
// a_min, a_max falls within [b_min,b_max], or b_min, b_max falls within
// [a_min,a_max].
func IntervalsOverlap(aMin, aMax, bMin, bMax gvalue.GeneralValue) (bool, error) {
	for _, pair := range [...][3]gvalue.GeneralValue{
		{aMin, bMin, bMax},
		{aMax, bMin, bMax},
		{bMin, aMin, aMax},
		{bMax, aMin, aMax},
	} {
		ok, err := inrange(pair[0], pair[1], pair[2])
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
