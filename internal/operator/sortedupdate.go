package operator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/gvalue"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

const (
	updateInsert  = 1
	updateReplace = 2
	updateDelete  = 3
)

// SortedUpdateOptions controls policy decisions SortedUpdate must make
// that the base algorithm leaves implementation-defined.
type SortedUpdateOptions struct {
	// ErrorOnDuplicateInsert makes an insert row whose key already
	// exists in base return ErrDuplicatePrimaryKey instead of the
	// default overwrite (last writer wins) behavior.
	ErrorOnDuplicateInsert bool
}

// DefaultSortedUpdateOptions returns the default policy: an insert
// colliding with an existing key overwrites it, matching a replace.
func DefaultSortedUpdateOptions() SortedUpdateOptions {
	return SortedUpdateOptions{}
}

// SortedUpdate applies a stream of update rows to a base table, both
// already sorted ascending by primaryKey, producing the new base
// table. Grounded on data-series-server.cpp's SortedUpdateModule and
// its PrimaryKey comparator.
//
// Each update row carries an extra byte column, named by updateColumn,
// whose value selects the operation: 1 inserts the row, 2 replaces the
// base row sharing its key (or inserts it, if no base row shares the
// key yet), 3 deletes the base row sharing its key (a no-op if none
// does). Every other row shape is identical to base's.
type SortedUpdate struct {
	base, update Iterator
	primaryKey   []string
	updateColumn string
	opts         SortedUpdateOptions

	baseType, updateType               *typeregistry.ExtentType
	baseSeries, updateSeries, outSeries *gvalue.Series
	baseKeyFields, updateKeyFields      []*gvalue.Field
	updateColField                      *gvalue.Field
	baseCopier, updateCopier            *gvalue.Copier

	baseDone, updateDone, initialized bool
}

// NewSortedUpdate returns a SortedUpdate merging update into base,
// ordered by primaryKey.
func NewSortedUpdate(base, update Iterator, primaryKey []string, updateColumn string, opts SortedUpdateOptions) *SortedUpdate {
	pk := make([]string, len(primaryKey))
	copy(pk, primaryKey)
	return &SortedUpdate{base: base, update: update, primaryKey: pk, updateColumn: updateColumn, opts: opts}
}

func fieldsFor(series *gvalue.Series, names []string) ([]*gvalue.Field, error) {
	fields := make([]*gvalue.Field, len(names))
	for i, n := range names {
		f, err := gvalue.NewField(series, n)
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}
	return fields, nil
}

func compareKeys(a, b []*gvalue.Field) (int, error) {
	if len(a) != len(b) {
		return 0, ErrPrimaryKeyLength
	}
	for i := range a {
		av, err := a[i].Get()
		if err != nil {
			return 0, err
		}
		bv, err := b[i].Get()
		if err != nil {
			return 0, err
		}
		c, err := av.Compare(bv)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c, nil
		}
	}
	return 0, nil
}

func (su *SortedUpdate) init() error {
	ue, err := su.update.GetExtent()
	if err != nil {
		if errors.Is(err, ErrNoMoreExtents) {
			su.updateDone = true
		} else {
			return err
		}
	}
	var updateType *typeregistry.ExtentType
	if ue != nil {
		updateType = ue.Type
	}

	be, err := su.base.GetExtent()
	if err != nil {
		if errors.Is(err, ErrNoMoreExtents) {
			su.baseDone = true
		} else {
			return err
		}
	}
	var baseType *typeregistry.ExtentType
	if be != nil {
		baseType = be.Type
	}

	if baseType == nil && updateType == nil {
		return fmt.Errorf("%w: sorted update", ErrEmptySource)
	}
	if baseType == nil {
		var fields []typeregistry.Field
		for _, f := range updateType.Fields {
			if f.Name == su.updateColumn {
				continue
			}
			fields = append(fields, typeregistry.Field{Name: f.Name, Type: f.Type, Nullable: f.Nullable})
		}
		bt, err := typeregistry.NewExtentType(updateType.Namespace, strings.TrimSuffix(updateType.Name, "-update"),
			updateType.VersionMajor, updateType.VersionMinor, fields)
		if err != nil {
			return err
		}
		baseType = bt
	}

	su.baseType = baseType
	su.baseSeries = gvalue.NewSeries(baseType)
	su.outSeries = gvalue.NewSeries(baseType)
	if be != nil {
		su.baseSeries.SetExtent(be)
	}
	var err2 error
	su.baseKeyFields, err2 = fieldsFor(su.baseSeries, su.primaryKey)
	if err2 != nil {
		return err2
	}
	su.baseCopier = gvalue.NewCopier(su.baseSeries, su.outSeries)
	if err := su.baseCopier.Prep(); err != nil {
		return err
	}

	if updateType == nil {
		return nil
	}
	su.updateType = updateType
	su.updateSeries = gvalue.NewSeries(updateType)
	if ue != nil {
		su.updateSeries.SetExtent(ue)
	}
	su.updateKeyFields, err2 = fieldsFor(su.updateSeries, su.primaryKey)
	if err2 != nil {
		return err2
	}
	su.updateColField, err2 = gvalue.NewField(su.updateSeries, su.updateColumn)
	if err2 != nil {
		return err2
	}

	renames := make(map[string]string, len(baseType.Fields))
	for _, f := range baseType.Fields {
		renames[f.Name] = f.Name
	}
	su.updateCopier = gvalue.NewCopier(su.updateSeries, su.outSeries)
	return su.updateCopier.PrepRenamed(renames)
}

func (su *SortedUpdate) advanceBase() error {
	su.baseSeries.Next()
	if su.baseSeries.More() {
		return nil
	}
	e, err := su.base.GetExtent()
	if err != nil {
		if errors.Is(err, ErrNoMoreExtents) {
			su.baseDone = true
			return nil
		}
		return err
	}
	su.baseSeries.SetExtent(e)
	return nil
}

func (su *SortedUpdate) advanceUpdate() error {
	su.updateSeries.Next()
	if su.updateSeries.More() {
		return nil
	}
	e, err := su.update.GetExtent()
	if err != nil {
		if errors.Is(err, ErrNoMoreExtents) {
			su.updateDone = true
			return nil
		}
		return err
	}
	su.updateSeries.SetExtent(e)
	return nil
}

// applyUpdateOnly handles an update row with no base row left at or
// after it: insert and replace emit the row, delete is a no-op.
func (su *SortedUpdate) applyUpdateOnly() error {
	uc, err := su.updateColField.Get()
	if err != nil {
		return err
	}
	switch uc.Byte() {
	case updateInsert, updateReplace:
		if err := su.copyUpdate(); err != nil {
			return err
		}
	case updateDelete:
		// nothing to delete
	default:
		return fmt.Errorf("%w: %d", ErrInvalidUpdateColumn, uc.Byte())
	}
	return su.advanceUpdate()
}

// applyUpdateAtOrAheadOfBase handles an update row whose key is at or
// before the current base row's key (equalKeys tells which). insert
// emits and advances the update side; if it collides with an existing
// base key it either returns ErrDuplicatePrimaryKey (when
// SortedUpdateOptions.ErrorOnDuplicateInsert is set) or overwrites the
// base row, advancing both sides as a replace does. replace emits and, if
// the keys are equal, advances both sides (otherwise it behaves as an
// insert since there's nothing yet to replace). delete drops the base
// row and advances both sides if the keys are equal, and is a no-op
// otherwise.
func (su *SortedUpdate) applyUpdateAtOrAheadOfBase(equalKeys bool) error {
	uc, err := su.updateColField.Get()
	if err != nil {
		return err
	}
	switch uc.Byte() {
	case updateInsert:
		if equalKeys && su.opts.ErrorOnDuplicateInsert {
			return ErrDuplicatePrimaryKey
		}
		if err := su.copyUpdate(); err != nil {
			return err
		}
		if equalKeys {
			if err := su.advanceBase(); err != nil {
				return err
			}
		}
		return su.advanceUpdate()
	case updateReplace:
		if err := su.copyUpdate(); err != nil {
			return err
		}
		if equalKeys {
			if err := su.advanceBase(); err != nil {
				return err
			}
		}
		return su.advanceUpdate()
	case updateDelete:
		if equalKeys {
			if err := su.advanceBase(); err != nil {
				return err
			}
		}
		return su.advanceUpdate()
	default:
		return fmt.Errorf("%w: %d", ErrInvalidUpdateColumn, uc.Byte())
	}
}

func (su *SortedUpdate) copyBase() error {
	su.outSeries.NewRecord()
	return su.baseCopier.CopyRecord()
}

func (su *SortedUpdate) copyUpdate() error {
	su.outSeries.NewRecord()
	return su.updateCopier.CopyRecord()
}

// GetExtent implements Iterator.
func (su *SortedUpdate) GetExtent() (*extent.Extent, error) {
	if !su.initialized {
		if err := su.init(); err != nil {
			return nil, err
		}
		su.initialized = true
	}
	if su.outSeries.Extent() == nil {
		su.outSeries.SetExtent(extent.New(su.outSeries.Type))
	}
	for {
		baseHas := su.baseSeries.More()
		updateHas := su.updateType != nil && su.updateSeries.More()
		if !baseHas && !updateHas {
			return su.flush()
		}

		switch {
		case baseHas && !updateHas:
			if err := su.copyBase(); err != nil {
				return nil, err
			}
			if err := su.advanceBase(); err != nil {
				return nil, err
			}
		case !baseHas && updateHas:
			// update-only tail: inserts and replaces emit (there is no
			// base row left to replace, so they behave as inserts);
			// deletes are a no-op.
			if err := su.applyUpdateOnly(); err != nil {
				return nil, err
			}
		default:
			cmp, err := compareKeys(su.baseKeyFields, su.updateKeyFields)
			if err != nil {
				return nil, err
			}
			if cmp < 0 {
				if err := su.copyBase(); err != nil {
					return nil, err
				}
				if err := su.advanceBase(); err != nil {
					return nil, err
				}
			} else if err := su.applyUpdateAtOrAheadOfBase(cmp == 0); err != nil {
				return nil, err
			}
		}

		if extentBytes(su.outSeries.Extent()) > maxExtentBytes {
			return su.flush()
		}
	}
}

// OutputType returns the row type SortedUpdate emits, or nil before
// the first extent has been pulled from base or update.
func (su *SortedUpdate) OutputType() *typeregistry.ExtentType {
	if su.outSeries == nil {
		return nil
	}
	return su.outSeries.Type
}

func (su *SortedUpdate) flush() (*extent.Extent, error) {
	out := su.outSeries.Extent()
	su.outSeries.ClearExtent()
	if out == nil || out.NRecords() == 0 {
		return nil, ErrNoMoreExtents
	}
	return out, nil
}
