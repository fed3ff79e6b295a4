package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

// Task status values. ACTIVE is initial, COMPLETED terminal, DELAYED terminal
// but reactivatable.
const (
	TaskStatusActive    TaskStatus = "ACTIVE"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusDelayed   TaskStatus = "DELAYED"
)

// ParseTaskStatus normalizes s and returns ErrInvalidStatus for unknown values.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case TaskStatusActive, TaskStatusCompleted, TaskStatusDelayed:
		return status, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// TaskLog is one entry of a task's ordered activity log.
type TaskLog struct {
	ID        int64     `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	ActorID   uuid.UUID `json:"actor_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is a unit of assigned work.
//
// ReadableID is assigned by the store at creation time by reading the current
// maximum and incrementing; concurrent creations can race on it.
type Task struct {
	ID          uuid.UUID   `json:"id"`
	ReadableID  int64       `json:"readable_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Deadline    time.Time   `json:"deadline"`
	Status      TaskStatus  `json:"status"`
	PriorityID  *uuid.UUID  `json:"priority_id,omitempty"`
	CreatedBy   uuid.UUID   `json:"created_by"`
	AssigneeIDs []uuid.UUID `json:"assignee_ids"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Logs        []TaskLog   `json:"logs,omitempty"`
}

// NewTask creates an ACTIVE task with a fresh id. ReadableID is left zero
// for the store to assign.
func NewTask(
	title, description string,
	deadline time.Time,
	priorityID *uuid.UUID,
	createdBy uuid.UUID,
	assignees []uuid.UUID,
) (*Task, error) {
	now := time.Now().UTC()
	t := &Task{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Deadline:    deadline.UTC(),
		Status:      TaskStatusActive,
		PriorityID:  priorityID,
		CreatedBy:   createdBy,
		AssigneeIDs: DedupeIDs(assignees),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if t.Title == "" {
		return NewValidationError("title", "cannot be empty", nil)
	}
	if len(t.Title) > 200 {
		return NewValidationError("title", "must be at most 200 characters", nil)
	}
	if t.Deadline.IsZero() {
		return NewValidationError("deadline", "is required", nil)
	}
	if t.CreatedBy == uuid.Nil {
		return NewValidationError("created_by", "cannot be empty", ErrInvalidID)
	}
	if len(t.AssigneeIDs) == 0 {
		return NewValidationError("assignee_ids", "must contain at least one user", nil)
	}
	if _, err := ParseTaskStatus(string(t.Status)); err != nil {
		return err
	}
	return nil
}

// HasAssignee reports whether userID is among the task's assignees.
func (t *Task) HasAssignee(userID uuid.UUID) bool {
	for _, id := range t.AssigneeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// DedupeIDs returns ids without duplicates or nil UUIDs, preserving order.
func DedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
