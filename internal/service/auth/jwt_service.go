// Package auth issues and validates the access tokens that carry a caller's
// identity, role and department, and verifies stored password hashes.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
)

// JWTService defines operations for managing JWT authentication tokens.
type JWTService interface {
	// GenerateToken creates a signed access token for user. Role and
	// department are embedded so requests can be scoped without a lookup.
	GenerateToken(ctx context.Context, user *domain.User) (string, error)

	// ValidateToken validates the provided access token string and extracts the claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid or ErrInvalidToken on failure.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the validated content of an access token.
type Claims struct {
	UserID       uuid.UUID   `json:"uid,omitempty"`
	Role         domain.Role `json:"role,omitempty"`
	DepartmentID *uuid.UUID  `json:"dept,omitempty"`

	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}

// Caller returns the request identity described by the claims.
func (c *Claims) Caller() domain.Caller {
	return domain.Caller{ID: c.UserID, Role: c.Role, DepartmentID: c.DepartmentID}
}
