package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrConflict is returned when a session or message with the given ID
	// already exists.
	ErrConflict = errors.New("already exists")
)
