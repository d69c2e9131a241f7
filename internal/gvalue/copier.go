package gvalue

import "fmt"

// Copier copies cells from a source series' current row to a destination
// series' current row, one field at a time. Grounded on
// data-series-server.cpp's ExtentRecordCopy (same-name columns) and
// RenameCopier (explicit source-name -> dest-name map).
type Copier struct {
	src, dst  *Series
	srcFields []*Field
	dstFields []*Field
}

// NewCopier returns a Copier bound to src and dst. Call Prep or PrepRenamed
// once, after both series have a Type, before the first CopyRecord.
func NewCopier(src, dst *Series) *Copier {
	return &Copier{src: src, dst: dst}
}

// Prep resolves one (src, dst) field pair per field declared on dst.Type,
// matching by identical name. Every dst field must exist on src, or
// ErrFieldNotFound is returned. Used when source and destination types
// share field names verbatim (select, project).
func (c *Copier) Prep() error {
	renames := make(map[string]string, len(c.dst.Type.Fields))
	for _, f := range c.dst.Type.Fields {
		renames[f.Name] = f.Name
	}
	return c.PrepRenamed(renames)
}

// PrepRenamed resolves one (src, dst) field pair per entry in renames,
// keyed by destination field name with the source field name as the
// value. Used when the destination type renames columns (union,
// sorted-update).
func (c *Copier) PrepRenamed(renames map[string]string) error {
	c.srcFields = c.srcFields[:0]
	c.dstFields = c.dstFields[:0]
	for dstName, srcName := range renames {
		sf, err := NewField(c.src, srcName)
		if err != nil {
			return fmt.Errorf("gvalue: copier source: %w", err)
		}
		df, err := NewField(c.dst, dstName)
		if err != nil {
			return fmt.Errorf("gvalue: copier dest: %w", err)
		}
		c.srcFields = append(c.srcFields, sf)
		c.dstFields = append(c.dstFields, df)
	}
	return nil
}

// CopyRecord copies every resolved field from the source series' current
// row to the destination series' current row.
func (c *Copier) CopyRecord() error {
	for i, sf := range c.srcFields {
		v, err := sf.Get()
		if err != nil {
			return err
		}
		if err := c.dstFields[i].Set(v); err != nil {
			return err
		}
	}
	return nil
}
