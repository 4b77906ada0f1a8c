package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized       = errors.New("could not validate credentials")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrForbidden          = errors.New("not enough privileges")
	ErrInactiveAccount    = errors.New("inactive user")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrValidation         = errors.New("validation failed")
	ErrRegistrationClosed = errors.New("open registration is disabled")
)

// ConflictError names the field whose uniqueness a write would break.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already registered", e.Field)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NewConflict returns an ErrConflict naming field.
func NewConflict(field LookupField) error {
	return &ConflictError{Field: string(field)}
}

// Unavailable wraps a storage or transport failure as ErrBackendUnavailable
// while keeping the cause in the message for logs.
func Unavailable(op string, cause error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrBackendUnavailable, cause)
}
