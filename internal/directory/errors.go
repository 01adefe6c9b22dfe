package directory

import "errors"

var (
	// ErrNotFound is returned when no entry matches a name.
	ErrNotFound = errors.New("entry not found")

	// ErrAlreadyExists is returned when inserting a duplicate name.
	ErrAlreadyExists = errors.New("entry already exists")

	// ErrInvalidName is returned for names that format to all padding.
	ErrInvalidName = errors.New("invalid name")
)
