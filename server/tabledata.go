package server

import (
	"errors"
	"fmt"

	"github.com/aalhour/extentstore/internal/gvalue"
	"github.com/aalhour/extentstore/internal/operator"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

// TableColumn names one output column of a GetTableData result: its
// name and its declared field type, rendered as text. Grounded on
// data-series-server.cpp's TableColumn (field_name, field_type_str).
type TableColumn struct {
	Name     string
	TypeName string
}

// TableData is the paged row-data result getTableData returns: every
// value rendered as its string form (GeneralValue.String()), plus a
// MoreRows flag set once MaxRows rows have been collected and further
// rows remain upstream. Grounded on data-series-server.cpp's TableData
// thrift struct (columns, rows, more_rows).
type TableData struct {
	Columns  []TableColumn
	Rows     [][]string
	MoreRows bool
}

// collectTableData pulls rows from src (optionally filtered upstream by
// a where-expression Select) into a TableData capped at maxRows,
// mirroring TableDataModule::processRow's early truncation under
// more_rows once the cap is hit.
func collectTableData(src operator.Iterator, maxRows int) (*TableData, error) {
	data := &TableData{}
	var (
		series *gvalue.Series
		fields []*gvalue.Field
	)

	for {
		e, err := src.GetExtent()
		if err != nil {
			if errors.Is(err, operator.ErrNoMoreExtents) {
				break
			}
			return nil, err
		}
		if series == nil {
			series = gvalue.NewSeries(e.Type)
			for _, f := range e.Type.Fields {
				gf, ferr := gvalue.NewField(series, f.Name)
				if ferr != nil {
					return nil, ferr
				}
				fields = append(fields, gf)
				data.Columns = append(data.Columns, TableColumn{Name: f.Name, TypeName: f.Type.String()})
			}
		}
		for series.SetExtent(e); series.More(); series.Next() {
			if len(data.Rows) >= maxRows {
				data.MoreRows = true
				return data, nil
			}
			row := make([]string, len(fields))
			for i, f := range fields {
				v, gerr := f.Get()
				if gerr != nil {
					return nil, gerr
				}
				row[i] = v.String()
			}
			data.Rows = append(data.Rows, row)
		}
		if data.MoreRows {
			return data, nil
		}
	}
	return data, nil
}

// buildExtentType validates and materializes a typeregistry.ExtentType
// out of (namespace, name, major.minor, fields) the same way the
// original builds ephemeral type descriptors in createTable: assembled
// from an existing type's field list rather than parsed from an XML
// string.
func buildExtentType(namespace, name string, major, minor int, fields []typeregistry.Field) (*typeregistry.ExtentType, error) {
	t, err := typeregistry.NewExtentType(namespace, name, major, minor, fields)
	if err != nil {
		return nil, fmt.Errorf("server: build type %s:%s: %w", namespace, name, err)
	}
	return t, nil
}
