package mocks

import (
	"context"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/service/auth"
)

// MockJWTService implements auth.JWTService for testing. By default tokens
// are the user's id and validate back to claims built from Users.
type MockJWTService struct {
	GenerateTokenFn func(ctx context.Context, user *domain.User) (string, error)
	ValidateTokenFn func(ctx context.Context, tokenString string) (*auth.Claims, error)

	// Claims maps issued tokens to their claims.
	Claims map[string]*auth.Claims
	Err    error
}

// NewMockJWTService creates a MockJWTService with an empty token table.
func NewMockJWTService() *MockJWTService {
	return &MockJWTService{Claims: make(map[string]*auth.Claims)}
}

// GenerateToken implements the auth.JWTService interface
func (m *MockJWTService) GenerateToken(ctx context.Context, user *domain.User) (string, error) {
	if m.GenerateTokenFn != nil {
		return m.GenerateTokenFn(ctx, user)
	}
	if m.Err != nil {
		return "", m.Err
	}
	token := "token-" + user.ID.String()
	m.Claims[token] = &auth.Claims{
		UserID:       user.ID,
		Role:         user.Role,
		DepartmentID: user.DepartmentID,
		Subject:      user.ID.String(),
	}
	return token, nil
}

// ValidateToken implements the auth.JWTService interface
func (m *MockJWTService) ValidateToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	if m.ValidateTokenFn != nil {
		return m.ValidateTokenFn(ctx, tokenString)
	}
	c, ok := m.Claims[tokenString]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return c, nil
}
