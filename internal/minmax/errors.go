package minmax

import "errors"

var (
	// ErrFieldNotFound is returned by BuildIndexType when an indexed or
	// sort column name does not resolve against the data type being
	// indexed.
	ErrFieldNotFound = errors.New("minmax: field not found")

	// ErrNoSelectors is returned by NewScanner when called with an empty
	// selector list: every scan needs at least one overlap predicate.
	ErrNoSelectors = errors.New("minmax: no selectors")
)
