package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrExternal   = errors.New("external service failure")

	// ErrLockBusy is a Conflict the caller is expected to retry.
	ErrLockBusy = fmt.Errorf("%w: resource is locked, retry later", ErrConflict)

	ErrFingerprintMismatch = fmt.Errorf("%w: cart was modified concurrently", ErrConflict)
	ErrSessionRequired     = fmt.Errorf("%w: session id required for guest users", ErrValidation)
)

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
