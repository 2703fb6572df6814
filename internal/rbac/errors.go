package rbac

import "errors"

var (
	ErrNotFound     = errors.New("rbac: not found")
	ErrConflict     = errors.New("rbac: already exists")
	ErrInvalidInput = errors.New("rbac: invalid input")
	ErrUnauthorized = errors.New("rbac: unauthorized")
	// ErrConfirmRequired is returned when a destructive operation on a
	// system entity needs an explicit confirmation from the caller.
	ErrConfirmRequired = errors.New("rbac: confirmation required")
)
