package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Department is a scoping dimension for MANAGER visibility and assignment.
type Department struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDepartment creates a Department with a fresh id.
func NewDepartment(name string) (*Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("name", "cannot be empty", nil)
	}
	return &Department{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}, nil
}
