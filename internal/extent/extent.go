// Package extent implements the in-memory Extent buffer: a fixed-record
// arena paired with a variable-length string pool, plus typed field
// accessors over both.
//
// Grounded on the Extent data model in Extent.hpp: a fixed-size record
// array holding one row per record (with a leading null-bitmap prefix
// per typeregistry.ExtentType.NullBytes), and a separate pool for
// variable32 (opaque byte string) fields, referenced by 4-byte offsets
// stored in the fixed record. Offset 0 is reserved to mean "empty"; the
// pool's own first 4 bytes are a length sentinel, so no real value ever
// lands at offset 0.
package extent

import (
	"encoding/binary"
	"fmt"

	"github.com/aalhour/extentstore/internal/typeregistry"
)

// poolHeaderSize is the length of the pool's leading sentinel: the total
// byte length of the pool, stored little-endian.
const poolHeaderSize = 4

// Extent owns a fixed-record array and a variable-length string pool for
// one batch of records of a single ExtentType.
type Extent struct {
	Type     *typeregistry.ExtentType
	Fixed    []byte
	Variable []byte
}

// New returns an empty Extent for t, with the variable pool initialized
// to just its length sentinel.
func New(t *typeregistry.ExtentType) *Extent {
	e := &Extent{
		Type:     t,
		Fixed:    make([]byte, 0),
		Variable: make([]byte, poolHeaderSize),
	}
	e.syncPoolHeader()
	return e
}

func (e *Extent) syncPoolHeader() {
	binary.LittleEndian.PutUint32(e.Variable[:poolHeaderSize], uint32(len(e.Variable)))
}

// NRecords returns the number of records currently in the fixed array.
func (e *Extent) NRecords() int {
	if e.Type.FixedRecordSize == 0 {
		return 0
	}
	return len(e.Fixed) / e.Type.FixedRecordSize
}

// AppendRecord grows the fixed array by one zeroed record and returns its
// index.
func (e *Extent) AppendRecord() int {
	idx := e.NRecords()
	e.Fixed = append(e.Fixed, make([]byte, e.Type.FixedRecordSize)...)
	return idx
}

func (e *Extent) recordOffset(record int) (int, error) {
	if record < 0 || record >= e.NRecords() {
		return 0, fmt.Errorf("extent: record %d out of range [0,%d)", record, e.NRecords())
	}
	return record * e.Type.FixedRecordSize, nil
}

// IsNull reports whether field f is null in the given record. Returns
// false for non-nullable fields.
func (e *Extent) IsNull(record int, f typeregistry.Field) (bool, error) {
	if f.NullBit < 0 {
		return false, nil
	}
	off, err := e.recordOffset(record)
	if err != nil {
		return false, err
	}
	byteIdx := off + f.NullBit/8
	bit := uint(f.NullBit % 8)
	return e.Fixed[byteIdx]&(1<<bit) != 0, nil
}

// SetNull sets or clears field f's null bit in the given record.
func (e *Extent) SetNull(record int, f typeregistry.Field, null bool) error {
	if f.NullBit < 0 {
		return fmt.Errorf("extent: field %q is not nullable", f.Name)
	}
	off, err := e.recordOffset(record)
	if err != nil {
		return err
	}
	byteIdx := off + f.NullBit/8
	bit := uint(f.NullBit % 8)
	if null {
		e.Fixed[byteIdx] |= 1 << bit
	} else {
		e.Fixed[byteIdx] &^= 1 << bit
	}
	return nil
}

// GetByte reads a byte field.
func (e *Extent) GetByte(record int, f typeregistry.Field) (byte, error) {
	off, err := e.recordOffset(record)
	if err != nil {
		return 0, err
	}
	return e.Fixed[off+f.Offset], nil
}

// SetByte writes a byte field.
func (e *Extent) SetByte(record int, f typeregistry.Field, v byte) error {
	off, err := e.recordOffset(record)
	if err != nil {
		return err
	}
	e.Fixed[off+f.Offset] = v
	return nil
}

// GetInt32 reads an int32 field.
func (e *Extent) GetInt32(record int, f typeregistry.Field) (int32, error) {
	off, err := e.recordOffset(record)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(e.Fixed[off+f.Offset:])), nil
}

// SetInt32 writes an int32 field.
func (e *Extent) SetInt32(record int, f typeregistry.Field, v int32) error {
	off, err := e.recordOffset(record)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(e.Fixed[off+f.Offset:], uint32(v))
	return nil
}

// GetInt64 reads an int64 field.
func (e *Extent) GetInt64(record int, f typeregistry.Field) (int64, error) {
	off, err := e.recordOffset(record)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(e.Fixed[off+f.Offset:])), nil
}

// SetInt64 writes an int64 field.
func (e *Extent) SetInt64(record int, f typeregistry.Field, v int64) error {
	off, err := e.recordOffset(record)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(e.Fixed[off+f.Offset:], uint64(v))
	return nil
}

// GetBool reads a bool field. Bools are stored as a single bit in the
// leading bitmap prefix, addressed by f.BoolBit rather than f.Offset.
func (e *Extent) GetBool(record int, f typeregistry.Field) (bool, error) {
	off, err := e.recordOffset(record)
	if err != nil {
		return false, err
	}
	byteIdx := off + f.BoolBit/8
	bit := uint(f.BoolBit % 8)
	return e.Fixed[byteIdx]&(1<<bit) != 0, nil
}

// SetBool writes a bool field; see GetBool for the bit layout.
func (e *Extent) SetBool(record int, f typeregistry.Field, v bool) error {
	off, err := e.recordOffset(record)
	if err != nil {
		return err
	}
	byteIdx := off + f.BoolBit/8
	bit := uint(f.BoolBit % 8)
	if v {
		e.Fixed[byteIdx] |= 1 << bit
	} else {
		e.Fixed[byteIdx] &^= 1 << bit
	}
	return nil
}

// GetVariable32 reads a variable32 field's bytes from the pool. An empty
// (offset-0) value returns a nil, zero-length slice.
func (e *Extent) GetVariable32(record int, f typeregistry.Field) ([]byte, error) {
	off, err := e.recordOffset(record)
	if err != nil {
		return nil, err
	}
	poolOff := binary.LittleEndian.Uint32(e.Fixed[off+f.Offset:])
	if poolOff == 0 {
		return nil, nil
	}
	if int(poolOff) >= len(e.Variable) {
		return nil, fmt.Errorf("extent: variable32 offset %d out of range (pool len %d)", poolOff, len(e.Variable))
	}
	length := binary.LittleEndian.Uint32(e.Variable[poolOff:])
	start := int(poolOff) + 4
	end := start + int(length)
	if end > len(e.Variable) {
		return nil, fmt.Errorf("extent: variable32 value at offset %d overruns pool", poolOff)
	}
	return e.Variable[start:end], nil
}

// SetVariable32 appends value to the pool and stores its offset in the
// field cell. Callers implementing pack_unique deduplication are
// responsible for checking whether an identical value already has a pool
// offset before calling this; SetVariable32 itself always appends.
func (e *Extent) SetVariable32(record int, f typeregistry.Field, value []byte) error {
	off, err := e.recordOffset(record)
	if err != nil {
		return err
	}
	if len(value) == 0 {
		binary.LittleEndian.PutUint32(e.Fixed[off+f.Offset:], 0)
		return nil
	}
	poolOff := len(e.Variable)
	buf := make([]byte, 4+len(value))
	binary.LittleEndian.PutUint32(buf, uint32(len(value)))
	copy(buf[4:], value)
	e.Variable = append(e.Variable, buf...)
	e.syncPoolHeader()
	binary.LittleEndian.PutUint32(e.Fixed[off+f.Offset:], uint32(poolOff))
	return nil
}
