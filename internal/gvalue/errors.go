package gvalue

import "errors"

var (
	// ErrFieldNotFound is returned when a field name does not exist on
	// the series' current type.
	ErrFieldNotFound = errors.New("gvalue: field not found")

	// ErrTypeMismatch is returned when a GeneralValue operation (Set,
	// Compare) is attempted between incompatible kinds.
	ErrTypeMismatch = errors.New("gvalue: type mismatch")

	// ErrNoCurrentRow is returned when a field accessor is used on a
	// series with no extent set, or positioned past the last record.
	ErrNoCurrentRow = errors.New("gvalue: no current row")
)
