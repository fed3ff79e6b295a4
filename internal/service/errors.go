package service

import (
	"errors"
	"fmt"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/store"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or a
	// wrong password. The two cases are not distinguished.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrTaskNotVisible is returned when the caller may not see a task.
	// API layer should map this to HTTP 403 Forbidden.
	ErrTaskNotVisible = fmt.Errorf("%w: task is outside the caller's visibility", domain.ErrForbidden)

	// ErrAssignmentNotAllowed is returned when the caller's role does not allow
	// assigning one of the requested users.
	ErrAssignmentNotAllowed = fmt.Errorf("%w: assignee outside the caller's assignment scope", domain.ErrForbidden)
)

// ServiceError wraps an unexpected failure with the operation that hit it.
// Expected conditions are returned as their sentinels instead.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{Operation: operation, Message: message, Err: err}
}

// wrapUnexpected returns err untouched when it is one of the conditions the
// API maps to a 4xx, and a ServiceError otherwise.
func wrapUnexpected(operation, message string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrInvalidEntity):
		return err
	}
	return NewServiceError(operation, message, err)
}
