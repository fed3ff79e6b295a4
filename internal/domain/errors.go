package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity or request fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = fmt.Errorf("%w: invalid ID", ErrValidation)

	// ErrInvalidStatus is returned for a status value outside ACTIVE, COMPLETED, DELAYED.
	ErrInvalidStatus = fmt.Errorf("%w: invalid task status", ErrValidation)

	// ErrInvalidTransition is returned when the requested status cannot be
	// reached from the current one.
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrValidation)

	// ErrUnauthenticated is returned when no caller identity is present.
	ErrUnauthenticated = errors.New("caller identity required")

	// ErrForbidden is returned when the caller's role or relationship to the
	// resource does not permit the operation.
	ErrForbidden = errors.New("operation not permitted")

	// ErrNotApproved is returned when an unapproved user attempts to sign in.
	ErrNotApproved = fmt.Errorf("%w: account pending approval", ErrForbidden)
)

// ValidationError describes a single invalid field. It wraps ErrValidation
// (or a more specific sentinel) so callers can match with errors.Is.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap returns the wrapped sentinel.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError. A nil err defaults to ErrValidation.
func NewValidationError(field, message string, err error) *ValidationError {
	if err == nil {
		err = ErrValidation
	}
	return &ValidationError{Field: field, Message: message, Err: err}
}
