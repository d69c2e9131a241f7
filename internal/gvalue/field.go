package gvalue

import (
	"fmt"

	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

// Field is a handle bound to (series, field name): it reads and writes the
// typed cell at the series' current row, polymorphic over every field type
// a series' ExtentType may declare. Grounded on GeneralField::make/val/set.
type Field struct {
	series *Series
	field  typeregistry.Field
}

// NewField resolves name against series.Type and returns a bound Field.
func NewField(series *Series, name string) (*Field, error) {
	f, ok := series.Type.FieldByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	return &Field{series: series, field: f}, nil
}

// Name returns the bound field's name.
func (f *Field) Name() string { return f.field.Name }

// Type returns the bound field's declared type.
func (f *Field) Type() typeregistry.FieldType { return f.field.Type }

// Get reads the value at the series' current row.
func (f *Field) Get() (GeneralValue, error) {
	if !f.series.More() {
		return GeneralValue{}, ErrNoCurrentRow
	}
	return getAt(f.series.ext, f.series.row, f.field)
}

// Set writes v at the series' current row. v's kind must match the bound
// field's type, or be KindNull if the field is nullable.
func (f *Field) Set(v GeneralValue) error {
	if f.series.ext == nil {
		return ErrNoCurrentRow
	}
	return setAt(f.series.ext, f.series.row, f.field, v)
}

// getAt reads field f at row of e as a GeneralValue, honoring nullability.
func getAt(e *extent.Extent, row int, f typeregistry.Field) (GeneralValue, error) {
	if f.NullBit >= 0 {
		null, err := e.IsNull(row, f)
		if err != nil {
			return GeneralValue{}, err
		}
		if null {
			return Null(), nil
		}
	}
	switch f.Type {
	case typeregistry.FieldBool:
		v, err := e.GetBool(row, f)
		return FromBool(v), err
	case typeregistry.FieldByte:
		v, err := e.GetByte(row, f)
		return FromByte(v), err
	case typeregistry.FieldInt32:
		v, err := e.GetInt32(row, f)
		return FromInt32(v), err
	case typeregistry.FieldInt64:
		v, err := e.GetInt64(row, f)
		return FromInt64(v), err
	case typeregistry.FieldVariable32:
		v, err := e.GetVariable32(row, f)
		return FromVariable32(v), err
	default:
		return GeneralValue{}, fmt.Errorf("%w: field %q has unknown type", ErrTypeMismatch, f.Name)
	}
}

// setAt writes v into field f at row of e, honoring nullability.
func setAt(e *extent.Extent, row int, f typeregistry.Field, v GeneralValue) error {
	if v.IsNull() {
		if f.NullBit < 0 {
			return fmt.Errorf("%w: field %q is not nullable", ErrTypeMismatch, f.Name)
		}
		return e.SetNull(row, f, true)
	}
	if f.NullBit >= 0 {
		if err := e.SetNull(row, f, false); err != nil {
			return err
		}
	}
	switch f.Type {
	case typeregistry.FieldBool:
		if v.Kind() != KindBool {
			return fmt.Errorf("%w: field %q wants bool, got %s", ErrTypeMismatch, f.Name, v.Kind())
		}
		return e.SetBool(row, f, v.Bool())
	case typeregistry.FieldByte:
		if v.Kind() != KindByte {
			return fmt.Errorf("%w: field %q wants byte, got %s", ErrTypeMismatch, f.Name, v.Kind())
		}
		return e.SetByte(row, f, v.Byte())
	case typeregistry.FieldInt32:
		if v.Kind() != KindInt32 {
			return fmt.Errorf("%w: field %q wants int32, got %s", ErrTypeMismatch, f.Name, v.Kind())
		}
		return e.SetInt32(row, f, v.Int32())
	case typeregistry.FieldInt64:
		if v.Kind() != KindInt64 {
			return fmt.Errorf("%w: field %q wants int64, got %s", ErrTypeMismatch, f.Name, v.Kind())
		}
		return e.SetInt64(row, f, v.Int64())
	case typeregistry.FieldVariable32:
		if v.Kind() != KindVariable32 {
			return fmt.Errorf("%w: field %q wants variable32, got %s", ErrTypeMismatch, f.Name, v.Kind())
		}
		return e.SetVariable32(row, f, v.Variable32())
	default:
		return fmt.Errorf("%w: field %q has unknown type", ErrTypeMismatch, f.Name)
	}
}

// GetRow reads field f at an arbitrary row of e, independent of any
// series cursor. Used by the sort operator's row comparator, which
// compares rows across different positions within (and across) extents.
func GetRow(e *extent.Extent, row int, f typeregistry.Field) (GeneralValue, error) {
	return getAt(e, row, f)
}
