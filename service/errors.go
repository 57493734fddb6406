package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for guilds that were never registered
	ErrNotFound = errors.New("guild not registered")

	// ErrConflict is returned when an emoji is already mapped to a role
	ErrConflict = errors.New("emoji already mapped")

	// ErrBadInput is returned for malformed command arguments
	ErrBadInput = errors.New("bad arguments")

	// ErrPermissionDenied is returned when the platform rejects a role change
	// or the invoking member lacks administrator permissions
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPersistence is returned when a configuration change could not be written
	ErrPersistence = errors.New("failed to persist guild configuration")
)

// ErrAdminRequired is returned for mutating commands issued by non-administrators
var ErrAdminRequired = fmt.Errorf("%w: administrator permission required", ErrPermissionDenied)

func badInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadInput, fmt.Sprintf(format, args...))
}
