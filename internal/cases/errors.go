package cases

import "errors"

var (
	ErrNotFound     = errors.New("cases: not found")
	ErrConflict     = errors.New("cases: already exists")
	ErrInvalidInput = errors.New("cases: invalid input")
	ErrDenied       = errors.New("cases: permission denied")
	// ErrBadTransition is returned when a status change is not reachable
	// from the case's current status.
	ErrBadTransition = errors.New("cases: invalid status transition")
)
