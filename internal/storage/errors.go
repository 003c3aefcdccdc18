package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested session does not exist.
	// For Remove this is the stale-session signal: some other event
	// already took the terminal transition.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
