package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create validates the user, hashes its plaintext Password and saves it.
	// Returns ErrEmailExists if the email is already taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by id. Returns ErrUserNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by email. Returns ErrUserNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetMany retrieves the users with the given ids. Missing ids are simply
	// absent from the result.
	GetMany(ctx context.Context, ids []uuid.UUID) ([]*domain.User, error)

	// SetApproved updates the approval flag. Returns ErrUserNotFound if absent.
	SetApproved(ctx context.Context, id uuid.UUID, approved bool) error

	// ListByRole returns approved users with the given role.
	ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error)

	// WithTx returns a UserStore bound to tx.
	WithTx(tx *sql.Tx) UserStore
}

// DepartmentStore defines the interface for department persistence.
type DepartmentStore interface {
	Create(ctx context.Context, dept *domain.Department) error

	// GetByID returns ErrDepartmentNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Department, error)

	List(ctx context.Context) ([]*domain.Department, error)
}
