package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when no account has the requested username.
	ErrNotFound = errors.New("account not found")

	// ErrConflict is returned when an account with the given username already exists.
	ErrConflict = errors.New("account already exists")
)
