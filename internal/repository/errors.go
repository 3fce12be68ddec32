package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates the record is in a state that forbids the
	// requested transition (e.g. a code that was already verified).
	ErrConflict = errors.New("repository: conflicting state")
)
