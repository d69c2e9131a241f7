// Package dsfile implements the self-describing on-disk file format: an
// ordered byte stream of (magic, library-extent, data-extents...,
// index-extent, tail). Grounded on internal/table/reader.go's
// footer-then-index-then-data-blocks discipline (table.Reader locates the
// footer at a fixed EOF offset, then the index, then streams data blocks
// by handle) adapted to this format's library-first, tail-last layout and
// single-pass sequential writer.
package dsfile

import (
	"fmt"

	"github.com/aalhour/extentstore/internal/extent"
	"github.com/aalhour/extentstore/internal/typeregistry"
)

// libraryExtentType is the well-known, unregistered ExtentType used to
// serialize a file's ExtentTypeLibrary as a single extent: one record per
// type, each holding that type's marshaled XML descriptor. Known to both
// writer and reader without appearing in the library itself.
var libraryExtentType = mustMetaType("dsfile", "TypeLibrary", []typeregistry.Field{
	{Name: "descriptor", Type: typeregistry.FieldVariable32},
})

// indexExtentType is the well-known ExtentType for the trailing index
// extent: one record per data extent, recording its file offset and the
// name of the type it was packed against.
var indexExtentType = mustMetaType("dsfile", "Index", []typeregistry.Field{
	{Name: "offset", Type: typeregistry.FieldInt64},
	{Name: "type_name", Type: typeregistry.FieldVariable32},
})

func mustMetaType(namespace, name string, fields []typeregistry.Field) *typeregistry.ExtentType {
	et, err := typeregistry.NewExtentType(namespace, name, 1, 0, fields)
	if err != nil {
		panic(fmt.Sprintf("dsfile: invalid built-in meta type %s:%s: %v", namespace, name, err))
	}
	return et
}

// buildLibraryExtent serializes lib as a single extent, one record per
// registered type.
func buildLibraryExtent(lib *typeregistry.Library) (*extent.Extent, error) {
	e := extent.New(libraryExtentType)
	descriptorField, _ := libraryExtentType.FieldByName("descriptor")
	for _, et := range lib.Types() {
		xmlBytes, err := et.MarshalXML()
		if err != nil {
			return nil, fmt.Errorf("dsfile: marshal type %s: %w", et.Key(), err)
		}
		idx := e.AppendRecord()
		if err := e.SetVariable32(idx, descriptorField, xmlBytes); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// parseLibraryExtent reconstructs a Library from an extent built by
// buildLibraryExtent.
func parseLibraryExtent(e *extent.Extent) (*typeregistry.Library, error) {
	descriptorField, ok := e.Type.FieldByName("descriptor")
	if !ok {
		return nil, fmt.Errorf("dsfile: library extent missing descriptor field")
	}
	lib := typeregistry.NewLibrary()
	for i := 0; i < e.NRecords(); i++ {
		xmlBytes, err := e.GetVariable32(i, descriptorField)
		if err != nil {
			return nil, err
		}
		et, err := typeregistry.ParseExtentType(xmlBytes)
		if err != nil {
			return nil, fmt.Errorf("dsfile: parse type descriptor %d: %w", i, err)
		}
		if err := lib.Register(et); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

// indexEntry is one row of the index extent: the byte offset of a data
// extent's header, and the name of the type it was packed against.
type indexEntry struct {
	Offset   int64
	TypeName string
}

func newIndexExtent() *extent.Extent {
	return extent.New(indexExtentType)
}

func appendIndexEntry(e *extent.Extent, entry indexEntry) error {
	offsetField, _ := indexExtentType.FieldByName("offset")
	nameField, _ := indexExtentType.FieldByName("type_name")
	idx := e.AppendRecord()
	if err := e.SetInt64(idx, offsetField, entry.Offset); err != nil {
		return err
	}
	return e.SetVariable32(idx, nameField, []byte(entry.TypeName))
}

func readIndexEntries(e *extent.Extent) ([]indexEntry, error) {
	offsetField, _ := e.Type.FieldByName("offset")
	nameField, _ := e.Type.FieldByName("type_name")
	entries := make([]indexEntry, e.NRecords())
	for i := range entries {
		off, err := e.GetInt64(i, offsetField)
		if err != nil {
			return nil, err
		}
		name, err := e.GetVariable32(i, nameField)
		if err != nil {
			return nil, err
		}
		entries[i] = indexEntry{Offset: off, TypeName: string(name)}
	}
	return entries, nil
}
