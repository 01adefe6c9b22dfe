package engine

import "errors"

var (
	// ErrWrongType is returned when a file operation targets a directory or
	// a directory operation targets a file.
	ErrWrongType = errors.New("wrong entry type")

	// ErrNotEmpty is returned when removing a directory that still has entries.
	ErrNotEmpty = errors.New("directory not empty")
)
