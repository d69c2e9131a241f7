package typeregistry

import "errors"

var (
	// ErrUnknownFieldType is returned when an XML descriptor names a
	// field type this build does not implement.
	ErrUnknownFieldType = errors.New("typeregistry: unknown field type")

	// ErrDuplicateField is returned when an ExtentType descriptor
	// declares the same field name twice.
	ErrDuplicateField = errors.New("typeregistry: duplicate field name")

	// ErrBadPackRelative is returned when a field's pack_relative names
	// a field that does not exist on the same type.
	ErrBadPackRelative = errors.New("typeregistry: pack_relative references unknown field")

	// ErrDuplicateType is returned by Library.Register when a type with
	// the same (namespace, name, version) is already present.
	ErrDuplicateType = errors.New("typeregistry: duplicate extent type in library")

	// ErrTypeNotInLibrary is returned when a file or operator references
	// a type name the library does not contain. Corresponds to the
	// TypeNotInLibrary format error in the file codec.
	ErrTypeNotInLibrary = errors.New("typeregistry: type not in library")

	// ErrMalformedDescriptor is returned for structurally invalid XML
	// extent-type descriptors (missing required attributes, empty field
	// list, and similar).
	ErrMalformedDescriptor = errors.New("typeregistry: malformed extent type descriptor")
)
