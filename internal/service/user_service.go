package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/logger"
	"github.com/dexten32/Task-Management-System-sub000/internal/service/auth"
	"github.com/dexten32/Task-Management-System-sub000/internal/store"
)

// SignupInput carries the fields of a signup request.
type SignupInput struct {
	Name         string
	Email        string
	Password     string
	DepartmentID *uuid.UUID
}

// Session is the result of a successful login.
type Session struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// UserService provides account operations.
type UserService interface {
	// Signup registers an unapproved EMPLOYEE.
	Signup(ctx context.Context, in SignupInput) (*domain.User, error)

	// Login checks credentials and issues an access token. Unapproved users
	// get domain.ErrNotApproved.
	Login(ctx context.Context, email, password string) (*Session, error)

	// Approve marks a user as approved. Only ADMIN may call it.
	Approve(ctx context.Context, caller domain.Caller, userID uuid.UUID) (*domain.User, error)
}

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	users       store.UserStore
	departments store.DepartmentStore
	passwords   auth.PasswordVerifier
	tokens      auth.JWTService
	logger      *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(
	users store.UserStore,
	departments store.DepartmentStore,
	passwords auth.PasswordVerifier,
	tokens auth.JWTService,
	logger *slog.Logger,
) UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserServiceImpl{
		users:       users,
		departments: departments,
		passwords:   passwords,
		tokens:      tokens,
		logger:      logger.With("component", "user_service"),
	}
}

// Signup implements UserService.
func (s *UserServiceImpl) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if in.DepartmentID != nil {
		if _, err := s.departments.GetByID(ctx, *in.DepartmentID); err != nil {
			if errors.Is(err, store.ErrDepartmentNotFound) {
				return nil, domain.NewValidationError("department_id", "unknown department", nil)
			}
			return nil, NewServiceError("signup", "failed to load department", err)
		}
	}

	user, err := domain.NewUser(in.Name, in.Email, in.Password, in.DepartmentID)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			log.Debug("signup with existing email")
		} else {
			log.Error("failed to create user", "error", err)
		}
		return nil, wrapUnexpected("signup", "failed to save user", err)
	}

	log.Info("user signed up", "user_id", user.ID)
	return user, nil
}

// Login implements UserService.
func (s *UserServiceImpl) Login(ctx context.Context, email, password string) (*Session, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.Debug("login for unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, NewServiceError("login", "failed to load user", err)
	}

	if err := s.passwords.Compare(user.HashedPassword, password); err != nil {
		log.Debug("login with wrong password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	if !user.Approved {
		log.Info("login by unapproved user", "user_id", user.ID)
		return nil, domain.ErrNotApproved
	}

	token, err := s.tokens.GenerateToken(ctx, user)
	if err != nil {
		return nil, NewServiceError("login", "failed to issue token", err)
	}

	log.Info("user logged in", "user_id", user.ID, "role", string(user.Role))
	return &Session{Token: token, User: user}, nil
}

// Approve implements UserService.
func (s *UserServiceImpl) Approve(ctx context.Context, caller domain.Caller, userID uuid.UUID) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if caller.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins may approve users", domain.ErrForbidden)
	}

	if err := s.users.SetApproved(ctx, userID, true); err != nil {
		return nil, wrapUnexpected("approve", "failed to approve user", err)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, wrapUnexpected("approve", "failed to reload user", err)
	}

	log.Info("user approved", "user_id", userID, "approved_by", caller.ID)
	return user, nil
}
