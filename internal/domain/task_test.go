package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	creator := uuid.New()
	a, b := uuid.New(), uuid.New()
	deadline := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	t.Run("valid task starts active with deduplicated assignees", func(t *testing.T) {
		task, err := NewTask("  Ship report ", "quarterly", deadline, nil, creator, []uuid.UUID{a, b, a, uuid.Nil})

		require.NoError(t, err)
		assert.Equal(t, "Ship report", task.Title)
		assert.Equal(t, TaskStatusActive, task.Status)
		assert.Equal(t, []uuid.UUID{a, b}, task.AssigneeIDs)
		assert.Zero(t, task.ReadableID)
		assert.True(t, task.HasAssignee(b))
		assert.False(t, task.HasAssignee(creator))
	})

	tests := []struct {
		name      string
		title     string
		deadline  time.Time
		assignees []uuid.UUID
		field     string
	}{
		{"empty title", "  ", deadline, []uuid.UUID{a}, "title"},
		{"missing deadline", "x", time.Time{}, []uuid.UUID{a}, "deadline"},
		{"no assignees", "x", deadline, nil, "assignee_ids"},
		{"only nil assignees", "x", deadline, []uuid.UUID{uuid.Nil}, "assignee_ids"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTask(tt.title, "", tt.deadline, nil, creator, tt.assignees)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestParseTaskStatus(t *testing.T) {
	for _, in := range []string{"ACTIVE", "completed", " Delayed "} {
		_, err := ParseTaskStatus(in)
		assert.NoError(t, err, in)
	}

	for _, in := range []string{"", "DONE", "ARCHIVED"} {
		_, err := ParseTaskStatus(in)
		assert.ErrorIs(t, err, ErrInvalidStatus, in)
		assert.ErrorIs(t, err, ErrValidation, in)
	}
}

func TestNewUser(t *testing.T) {
	dept := uuid.New()

	u, err := NewUser("Ada", " Ada@Example.com ", "longenough", &dept)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, RoleEmployee, u.Role)
	assert.False(t, u.Approved)
	assert.True(t, u.InDepartment(dept))

	caller := u.Caller()
	assert.True(t, caller.Authenticated())
	assert.True(t, caller.HasDepartment())

	_, err = NewUser("Ada", "not-an-email", "longenough", nil)
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = NewUser("Ada", "ada@example.com", "short", nil)
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
