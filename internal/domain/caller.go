package domain

import (
	"context"

	"github.com/google/uuid"
)

// Caller is the authenticated identity behind a request, as supplied by the
// HTTP layer.
type Caller struct {
	ID           uuid.UUID
	Role         Role
	DepartmentID *uuid.UUID
}

// Authenticated reports whether the caller carries an identity.
func (c Caller) Authenticated() bool {
	return c.ID != uuid.Nil
}

// HasDepartment reports whether the caller belongs to a department.
func (c Caller) HasDepartment() bool {
	return c.DepartmentID != nil && *c.DepartmentID != uuid.Nil
}

type callerKey struct{}

// WithCaller returns a copy of ctx carrying the caller.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext extracts the caller placed by the authentication middleware.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	if !ok || !c.Authenticated() {
		return Caller{}, false
	}
	return c, true
}
