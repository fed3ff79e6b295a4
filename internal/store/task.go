package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/visibility"
)

// TaskQuery selects a page of tasks, newest first.
type TaskQuery struct {
	Predicate visibility.Predicate
	Offset    int
	Limit     int
}

// TaskPage is one page of a listing and the total number of matches.
type TaskPage struct {
	Tasks []*domain.Task `json:"tasks"`
	Total int            `json:"total"`
}

// TaskStore defines the interface for task persistence.
type TaskStore interface {
	// List returns the tasks matching q.Predicate ordered by created_at
	// descending. Tasks in the page carry their assignees but not their logs.
	List(ctx context.Context, q TaskQuery) (TaskPage, error)

	// GetByID returns the task with assignees and logs.
	// Returns ErrTaskNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Create inserts the task and its assignees and sets task.ReadableID to
	// one more than the current maximum. Two concurrent creations can
	// compute the same number; the loser gets ErrReadableIDTaken.
	Create(ctx context.Context, task *domain.Task) error

	// UpdateStatus sets the status and appends entry to the task log.
	// Returns ErrTaskNotFound if absent.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus, entry domain.TaskLog) error

	// ReplaceAssignees swaps the assignee set and appends entry to the log.
	// Returns ErrTaskNotFound if absent.
	ReplaceAssignees(ctx context.Context, id uuid.UUID, assignees []uuid.UUID, entry domain.TaskLog) error

	// CountByStatus counts tasks per status. A non-nil departmentID restricts
	// the count to tasks with an assignee in that department.
	CountByStatus(ctx context.Context, departmentID *uuid.UUID) (map[domain.TaskStatus]int, error)

	// WithTx returns a TaskStore bound to tx.
	WithTx(tx *sql.Tx) TaskStore
}
