// Package gvalue implements the dynamically-typed value and field
// abstractions the operator pipeline is built on: GeneralValue (a tagged
// variant over the scalar types an ExtentType field can hold), GeneralField
// (a handle bound to a field name on a Series' current row), a RecordCopier,
// and a small expression sub-language used by the select operator's where
// clause.
//
// Grounded on Extent.hpp/GeneralField's value model, referenced from
// _examples/original_source/src/server/data-series-server.cpp (GVVec,
// RenameCopier, GeneralField::make/val/set). This port avoids virtual
// dispatch per field type by keeping GeneralValue a small value struct
// switched on Kind, the same "thin variant plus switch" shape
// typeregistry.FieldType itself already uses.
package gvalue

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/aalhour/extentstore/internal/typeregistry"
)

// Kind identifies which scalar type a GeneralValue currently holds.
type Kind uint8

const (
	// KindNull marks a null value; it carries no payload.
	KindNull Kind = iota
	KindBool
	KindByte
	KindInt32
	KindInt64
	KindVariable32
)

// String returns the human-readable name of k.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindByte:
		return "byte"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindVariable32:
		return "variable32"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// GeneralValue is an owned, tagged value over the field types an
// ExtentType may declare, used for comparisons and hashing across
// heterogeneous field types (sort keys, join keys, union order columns).
type GeneralValue struct {
	kind  Kind
	num   int64 // holds bool (0/1), byte, int32, int64
	bytes []byte
}

// Null returns the null GeneralValue.
func Null() GeneralValue { return GeneralValue{kind: KindNull} }

// FromBool returns a GeneralValue wrapping v.
func FromBool(v bool) GeneralValue {
	n := int64(0)
	if v {
		n = 1
	}
	return GeneralValue{kind: KindBool, num: n}
}

// FromByte returns a GeneralValue wrapping v.
func FromByte(v byte) GeneralValue { return GeneralValue{kind: KindByte, num: int64(v)} }

// FromInt32 returns a GeneralValue wrapping v.
func FromInt32(v int32) GeneralValue { return GeneralValue{kind: KindInt32, num: int64(v)} }

// FromInt64 returns a GeneralValue wrapping v.
func FromInt64(v int64) GeneralValue { return GeneralValue{kind: KindInt64, num: v} }

// FromVariable32 returns a GeneralValue wrapping v. v is not copied; callers
// handing it an extent-owned slice should not mutate it afterwards.
func FromVariable32(v []byte) GeneralValue { return GeneralValue{kind: KindVariable32, bytes: v} }

// Kind returns the value's current tag.
func (v GeneralValue) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v GeneralValue) IsNull() bool { return v.kind == KindNull }

// Bool returns v's bool payload. Only meaningful when Kind() == KindBool.
func (v GeneralValue) Bool() bool { return v.num != 0 }

// Byte returns v's byte payload. Only meaningful when Kind() == KindByte.
func (v GeneralValue) Byte() byte { return byte(v.num) }

// Int32 returns v's int32 payload. Only meaningful when Kind() == KindInt32.
func (v GeneralValue) Int32() int32 { return int32(v.num) }

// Int64 returns v's int64 payload, widening bool/byte/int32 values as
// needed. Meaningful for every numeric kind.
func (v GeneralValue) Int64() int64 { return v.num }

// Variable32 returns v's byte-string payload. Only meaningful when Kind()
// == KindVariable32.
func (v GeneralValue) Variable32() []byte { return v.bytes }

// Compare orders two GeneralValues: null sorts before every non-null value
// and equal to another null; numeric kinds compare by widened int64 value
// regardless of exact kind (so an int32 field and an int64 field holding
// the same number compare equal); variable32 values compare byte-wise.
// Comparing a numeric value against a variable32 value (or vice versa)
// returns ErrTypeMismatch.
func (v GeneralValue) Compare(o GeneralValue) (int, error) {
	if v.kind == KindNull || o.kind == KindNull {
		switch {
		case v.kind == KindNull && o.kind == KindNull:
			return 0, nil
		case v.kind == KindNull:
			return -1, nil
		default:
			return 1, nil
		}
	}
	if v.kind == KindVariable32 || o.kind == KindVariable32 {
		if v.kind != o.kind {
			return 0, fmt.Errorf("%w: comparing %s to %s", ErrTypeMismatch, v.kind, o.kind)
		}
		switch {
		case string(v.bytes) < string(o.bytes):
			return -1, nil
		case string(v.bytes) > string(o.bytes):
			return 1, nil
		default:
			return 0, nil
		}
	}
	switch {
	case v.num < o.num:
		return -1, nil
	case v.num > o.num:
		return 1, nil
	default:
		return 0, nil
	}
}

// Equal reports whether v and o compare equal, treating a type mismatch as
// unequal rather than an error.
func (v GeneralValue) Equal(o GeneralValue) bool {
	c, err := v.Compare(o)
	return err == nil && c == 0
}

// String renders v for diagnostics and as the expression evaluator's string
// coercion.
func (v GeneralValue) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.Bool())
	case KindByte:
		return strconv.Itoa(int(v.Byte()))
	case KindInt32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case KindVariable32:
		return string(v.bytes)
	default:
		return "?"
	}
}

// ParseString parses s as a value of ft, the string-typed counterpart
// to Field.Set used when row data arrives as text rather than already
// scalar-typed values — data-series-server.cpp's importData calls
// GeneralField::set(const string &) the same way for its inline
// TableData rows. An empty string parses to KindNull for every type,
// matching GeneralField's "empty field text means null" convention.
func ParseString(ft typeregistry.FieldType, s string) (GeneralValue, error) {
	if s == "" {
		return Null(), nil
	}
	switch ft {
	case typeregistry.FieldBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return GeneralValue{}, fmt.Errorf("%w: %q is not a bool", ErrTypeMismatch, s)
		}
		return FromBool(b), nil
	case typeregistry.FieldByte:
		n, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return GeneralValue{}, fmt.Errorf("%w: %q is not a byte", ErrTypeMismatch, s)
		}
		return FromByte(byte(n)), nil
	case typeregistry.FieldInt32:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return GeneralValue{}, fmt.Errorf("%w: %q is not an int32", ErrTypeMismatch, s)
		}
		return FromInt32(int32(n)), nil
	case typeregistry.FieldInt64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return GeneralValue{}, fmt.Errorf("%w: %q is not an int64", ErrTypeMismatch, s)
		}
		return FromInt64(n), nil
	case typeregistry.FieldVariable32:
		return FromVariable32([]byte(s)), nil
	default:
		return GeneralValue{}, fmt.Errorf("%w: unknown field type %s", ErrTypeMismatch, ft)
	}
}

// Key returns a string encoding of v suitable for use as a Go map key,
// distinguishing values of different kinds even when their numeric payload
// coincides (so an int32(0) and a null do not collide).
func (v GeneralValue) Key() string {
	var buf [9]byte
	buf[0] = byte(v.kind)
	if v.kind == KindVariable32 {
		var b strings.Builder
		b.WriteByte(buf[0])
		b.WriteString(v.String())
		return b.String()
	}
	binary.BigEndian.PutUint64(buf[1:], uint64(v.num))
	return string(buf[:])
}

// Vec is an ordered tuple of GeneralValues, used as a composite sort,
// join, or union key. Grounded on data-series-server.cpp's GVVec.
type Vec []GeneralValue

// Key returns a string encoding suitable for use as a Go map key, the
// composite analog of GeneralValue.Key.
func (v Vec) Key() string {
	var b strings.Builder
	for _, gv := range v {
		b.WriteString(gv.Key())
	}
	return b.String()
}

// Equal reports whether v and o hold the same values in the same order.
func (v Vec) Equal(o Vec) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if !v[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Compare orders v and o lexicographically, stopping at the first
// non-equal element. v and o must have equal length.
func (v Vec) Compare(o Vec) (int, error) {
	for i := range v {
		c, err := v[i].Compare(o[i])
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c, nil
		}
	}
	return 0, nil
}
