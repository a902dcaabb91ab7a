package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is returned when a state transition is not allowed.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable marks optional dependencies that are not configured or reachable.
	ErrUnavailable = errors.New("unavailable")
)
