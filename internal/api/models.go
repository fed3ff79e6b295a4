package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
)

// SignupRequest defines the payload for the signup endpoint.
type SignupRequest struct {
	Name         string     `json:"name"          validate:"required,max=100"`
	Email        string     `json:"email"         validate:"required,email"`
	Password     string     `json:"password"      validate:"required,min=8,max=72"`
	DepartmentID *uuid.UUID `json:"department_id"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for login.
type AuthResponse struct {
	UserID       uuid.UUID   `json:"user_id"`
	AccessToken  string      `json:"token"`
	Role         domain.Role `json:"role"`
	DepartmentID *uuid.UUID  `json:"department_id,omitempty"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Role         domain.Role `json:"role"`
	DepartmentID *uuid.UUID  `json:"department_id,omitempty"`
	Approved     bool        `json:"approved"`
	CreatedAt    time.Time   `json:"created_at"`
}

func userToResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		DepartmentID: u.DepartmentID,
		Approved:     u.Approved,
		CreatedAt:    u.CreatedAt,
	}
}

// CreateTaskRequest defines the payload for creating a task.
type CreateTaskRequest struct {
	Title       string      `json:"title"        validate:"required,max=200"`
	Description string      `json:"description"  validate:"max=5000"`
	Deadline    time.Time   `json:"deadline"     validate:"required"`
	PriorityID  *uuid.UUID  `json:"priority_id"`
	AssigneeIDs []uuid.UUID `json:"assignee_ids" validate:"required,min=1,max=50"`
}

// UpdateStatusRequest defines the payload for a status change.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ReplaceAssigneesRequest defines the payload for replacing a task's assignees.
type ReplaceAssigneesRequest struct {
	AssigneeIDs []uuid.UUID `json:"assignee_ids" validate:"required,min=1,max=50"`
}

// ReportRequest defines the payload for requesting a status report. A nil
// department means all departments.
type ReportRequest struct {
	DepartmentID *uuid.UUID `json:"department_id"`
}
