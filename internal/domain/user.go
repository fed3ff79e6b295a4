package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role of a user.
type Role string

// Known roles.
const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleEmployee Role = "EMPLOYEE"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// Elevated reports whether the role may act on tasks it neither created nor
// is assigned to.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleManager
}

// User validation errors. All wrap ErrValidation.
var (
	ErrEmptyUserID      = fmt.Errorf("%w: user ID cannot be empty", ErrValidation)
	ErrEmptyEmail       = fmt.Errorf("%w: email cannot be empty", ErrValidation)
	ErrInvalidEmail     = fmt.Errorf("%w: invalid email format", ErrValidation)
	ErrEmptyName        = fmt.Errorf("%w: name cannot be empty", ErrValidation)
	ErrInvalidRole      = fmt.Errorf("%w: invalid role", ErrValidation)
	ErrPasswordTooShort = fmt.Errorf("%w: password must be at least 8 characters long", ErrValidation)
	ErrPasswordTooLong  = fmt.Errorf("%w: password must be at most 72 characters long", ErrValidation)
)

// User represents a registered user. Visibility and mutation rights are
// derived from Role and DepartmentID.
type User struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Role           Role       `json:"role"`
	DepartmentID   *uuid.UUID `json:"department_id,omitempty"`
	Approved       bool       `json:"approved"`
	Password       string     `json:"-"` // plaintext, only during signup
	HashedPassword string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewUser creates an unapproved EMPLOYEE with the given details.
// The caller is responsible for hashing the password before storing the user.
func NewUser(name, email, password string, departmentID *uuid.UUID) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Role:         RoleEmployee,
		DepartmentID: departmentID,
		Password:     password,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}
	if u.Name == "" {
		return ErrEmptyName
	}
	if u.Email == "" {
		return ErrEmptyEmail
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ErrInvalidEmail
	}
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	if u.Password != "" {
		if len(u.Password) < 8 {
			return ErrPasswordTooShort
		}
		if len(u.Password) > 72 {
			return ErrPasswordTooLong
		}
	}
	return nil
}

// Caller returns the identity this user acts as.
func (u *User) Caller() Caller {
	return Caller{ID: u.ID, Role: u.Role, DepartmentID: u.DepartmentID}
}

// InDepartment reports whether the user belongs to the given department.
func (u *User) InDepartment(departmentID uuid.UUID) bool {
	return u.DepartmentID != nil && *u.DepartmentID == departmentID
}
