package minmax

import (
	"fmt"

	"github.com/aalhour/extentstore/internal/typeregistry"
)

// IndexTypeName returns the reserved type name an index over a data
// extent type named dataTypeName is published under, per §6:
// "DSIndex::Extent::MinMax::<type>".
func IndexTypeName(dataTypeName string) string {
	return "DSIndex::Extent::MinMax::" + dataTypeName
}

// BuildIndexType returns the ExtentType for a min/max index over
// dataType, per §6's index-extent schema: filename, extent_offset, then
// min:<field>/max:<field> for each entry in indexedFields (in the type
// each one has in dataType), plus sortField itself (unprefixed) so a
// scan can order kept extents without re-reading the data file.
//
// sortField may coincide with one of indexedFields; it is still added
// once, under its own plain name, since "min:x"/"max:x" never collides
// with a bare field name.
func BuildIndexType(dataType *typeregistry.ExtentType, indexedFields []string, sortField string) (*typeregistry.ExtentType, error) {
	fields := []typeregistry.Field{
		{Name: "filename", Type: typeregistry.FieldVariable32},
		{Name: "extent_offset", Type: typeregistry.FieldInt64},
	}
	for _, col := range indexedFields {
		f, ok := dataType.FieldByName(col)
		if !ok {
			return nil, fmt.Errorf("%w: indexed column %q", ErrFieldNotFound, col)
		}
		fields = append(fields,
			typeregistry.Field{Name: "min:" + col, Type: f.Type},
			typeregistry.Field{Name: "max:" + col, Type: f.Type},
		)
	}
	sf, ok := dataType.FieldByName(sortField)
	if !ok {
		return nil, fmt.Errorf("%w: sort column %q", ErrFieldNotFound, sortField)
	}
	fields = append(fields, typeregistry.Field{Name: sortField, Type: sf.Type})

	return typeregistry.NewExtentType(dataType.Namespace, IndexTypeName(dataType.Name), 1, 0, fields)
}
