package operator

import "errors"

var (
	// ErrNoMoreExtents is returned by Iterator.GetExtent once the
	// operator (and everything upstream of it) is exhausted.
	ErrNoMoreExtents = errors.New("operator: no more extents")

	// ErrTooManyLeftRows is returned by HashJoin when its buffered
	// "a" side input grows past its configured row limit.
	ErrTooManyLeftRows = errors.New("operator: a table has too many rows")

	// ErrInvalidExtraction is returned when a hash-join or star-join
	// keep/extract-column specification does not resolve to a real
	// column on the referenced side.
	ErrInvalidExtraction = errors.New("operator: invalid column extraction")

	// ErrEmptySource is returned when an operator that requires at
	// least one non-empty input (hash-join's "a" side, sort, union)
	// receives none.
	ErrEmptySource = errors.New("operator: source produced no extents")

	// ErrUnknownDimension is returned by StarJoin when a join entry
	// names a dimension that was not declared, or a declared
	// dimension is never joined against.
	ErrUnknownDimension = errors.New("operator: unknown dimension")

	// ErrDimensionKeyNotFound is returned by StarJoin when a fact row's
	// join key has no matching row in the loaded dimension table and its
	// MissPolicy is none of MissSkipRow, MissLeavePrevious or MissNull.
	ErrDimensionKeyNotFound = errors.New("operator: dimension key not found")

	// ErrInvalidUpdateColumn is returned by SortedUpdate when the
	// update-kind column holds a value other than insert/replace/delete.
	ErrInvalidUpdateColumn = errors.New("operator: invalid update column value")

	// ErrPrimaryKeyLength is returned when a primary key column list's
	// length does not match between the base and update series.
	ErrPrimaryKeyLength = errors.New("operator: primary key field count mismatch")

	// ErrDuplicatePrimaryKey is returned by SortedUpdate when an insert
	// row's key collides with an existing base row and
	// SortedUpdateOptions.ErrorOnDuplicateInsert is set.
	ErrDuplicatePrimaryKey = errors.New("operator: insert collides with an existing primary key")
)
