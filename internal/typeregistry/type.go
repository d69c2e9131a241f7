// Package typeregistry parses extent-type descriptors (XML-shaped
// schemas), assigns field offsets, and interns a library of types keyed
// by (namespace, name, version).
//
// Grounded on the extent-type model in Extent.hpp: a type is an ordered
// list of fields, each with a semantic type, optional nullability, and
// optional pack hints (pack_relative, pack_unique, pack_scale). Layout
// assignment — null bitmap prefix, then fixed fields in declaration
// order — follows the same convention.
package typeregistry

import "fmt"

// ExtentType is a schema identified by (namespace, name, (major, minor)
// version), with an ordered list of fields and a computed fixed-record
// layout.
type ExtentType struct {
	Namespace    string
	Name         string
	VersionMajor int
	VersionMinor int
	Fields       []Field

	// NullBytes is the size in bytes of the leading null-bitmap prefix.
	// Zero when no field is nullable.
	NullBytes int

	// FixedRecordSize is the total size in bytes of one fixed record,
	// including the null-bitmap prefix.
	FixedRecordSize int

	byName map[string]int // field name -> index into Fields
}

// Key returns the string uniquely identifying this type within a
// library: "namespace:name:major.minor".
func (t *ExtentType) Key() string {
	return key(t.Namespace, t.Name, t.VersionMajor, t.VersionMinor)
}

func key(namespace, name string, major, minor int) string {
	return fmt.Sprintf("%s:%s:%d.%d", namespace, name, major, minor)
}

// FieldByName returns the field with the given name and true, or a zero
// Field and false if no such field exists.
func (t *ExtentType) FieldByName(name string) (Field, bool) {
	idx, ok := t.byName[name]
	if !ok {
		return Field{}, false
	}
	return t.Fields[idx], true
}

// NewExtentType validates fields, assigns null bits and byte offsets, and
// returns the resulting ExtentType. Fields are laid out in declaration
// order immediately after the null-bitmap prefix; pack_relative
// references are checked against the field set (forward references to a
// field's own name, for self-relative packing, are allowed).
func NewExtentType(namespace, name string, major, minor int, fields []Field) (*ExtentType, error) {
	t := &ExtentType{
		Namespace:    namespace,
		Name:         name,
		VersionMajor: major,
		VersionMinor: minor,
		Fields:       make([]Field, len(fields)),
		byName:       make(map[string]int, len(fields)),
	}
	copy(t.Fields, fields)

	for i, f := range t.Fields {
		if _, exists := t.byName[f.Name]; exists {
			return nil, fmt.Errorf("%w: %q in type %s", ErrDuplicateField, f.Name, t.Key())
		}
		t.byName[f.Name] = i
	}

	// The leading bitmap prefix packs two kinds of single bits: one per
	// nullable field (NullBit) and one per bool-typed field (BoolBit),
	// since a bool's value and a bool's nullability are both one-bit
	// concerns that don't warrant their own byte.
	bit := 0
	for i := range t.Fields {
		if t.Fields[i].Nullable {
			t.Fields[i].NullBit = bit
			bit++
		} else {
			t.Fields[i].NullBit = -1
		}
	}
	for i := range t.Fields {
		if t.Fields[i].Type == FieldBool {
			t.Fields[i].BoolBit = bit
			bit++
		}
	}
	t.NullBytes = (bit + 7) / 8

	offset := t.NullBytes
	for i := range t.Fields {
		if t.Fields[i].Type == FieldBool {
			continue
		}
		t.Fields[i].Offset = offset
		offset += t.Fields[i].Type.Size()
	}
	t.FixedRecordSize = offset

	for _, f := range t.Fields {
		if f.PackRelative == "" {
			continue
		}
		if f.PackRelative == f.Name {
			continue // self-relative packing
		}
		if _, ok := t.byName[f.PackRelative]; !ok {
			return nil, fmt.Errorf("%w: field %q references %q in type %s",
				ErrBadPackRelative, f.Name, f.PackRelative, t.Key())
		}
	}

	return t, nil
}
