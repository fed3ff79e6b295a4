package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/store"
	"github.com/dexten32/Task-Management-System-sub000/internal/visibility"
)

var taskRowColumns = []string{
	"id", "readable_id", "title", "description", "deadline", "status",
	"priority_id", "created_by", "created_at", "updated_at", "assignees",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"email taken", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, store.ErrEmailExists},
		{"readable id race", &pgconn.PgError{Code: "23505", ConstraintName: "tasks_readable_id_key"}, store.ErrReadableIDTaken},
		{"other unique", &pgconn.PgError{Code: "23505", ConstraintName: "departments_name_key"}, store.ErrDuplicate},
		{"foreign key", &pgconn.PgError{Code: "23503"}, store.ErrInvalidEntity},
		{"check", &pgconn.PgError{Code: "23514"}, store.ErrInvalidEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, MapError(tt.err), tt.want)
		})
	}

	assert.NoError(t, MapError(nil))
	plain := errors.New("boom")
	assert.Same(t, plain, MapError(plain))
	assert.False(t, errors.Is(MapError(&pgconn.PgError{Code: "23505", ConstraintName: "x"}), store.ErrEmailExists))
}

func TestTaskStore_List(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresTaskStore(db, nil)

	caller := uuid.New()
	a1, a2 := uuid.New(), uuid.New()
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	taskID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM tasks t WHERE (t.created_by = $1)")).
		WithArgs(caller.String()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY t.created_at DESC, t.readable_id DESC LIMIT $2 OFFSET $3")).
		WithArgs(caller.String(), 10, 20).
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow(taskID.String(), int64(3), "Ship", "", now, "ACTIVE", nil, caller.String(), now, now,
				a1.String()+","+a2.String()))

	page, err := s.List(context.Background(), store.TaskQuery{
		Predicate: visibility.Predicate{Scope: []visibility.Clause{{Kind: visibility.AssignedBy, ID: caller}}},
		Offset:    20,
		Limit:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, page.Total)
	require.Len(t, page.Tasks, 1)
	got := page.Tasks[0]
	assert.Equal(t, taskID, got.ID)
	assert.Equal(t, int64(3), got.ReadableID)
	assert.Equal(t, domain.TaskStatusActive, got.Status)
	assert.Nil(t, got.PriorityID)
	assert.Equal(t, []uuid.UUID{a1, a2}, got.AssigneeIDs)
}

func TestTaskStore_ListEmptyPage(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresTaskStore(db, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM tasks t WHERE FALSE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("FROM tasks t WHERE FALSE ORDER BY").
		WillReturnRows(sqlmock.NewRows(taskRowColumns))

	page, err := s.List(context.Background(), store.TaskQuery{Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, page.Tasks)
	assert.Empty(t, page.Tasks)
}

func TestTaskStore_GetByID(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresTaskStore(db, nil)
		id := uuid.New()

		mock.ExpectQuery("FROM tasks t WHERE t.id = ").
			WithArgs(id.String()).
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("with logs", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresTaskStore(db, nil)
		id, creator, priority := uuid.New(), uuid.New(), uuid.New()
		now := time.Now().UTC()

		mock.ExpectQuery("FROM tasks t WHERE t.id = ").
			WithArgs(id.String()).
			WillReturnRows(sqlmock.NewRows(taskRowColumns).
				AddRow(id.String(), int64(1), "Ship", "desc", now, "DELAYED", priority.String(),
					creator.String(), now, now, ""))
		mock.ExpectQuery("FROM task_logs WHERE task_id = ").
			WithArgs(id.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "task_id", "actor_id", "message", "created_at"}).
				AddRow(int64(1), id.String(), creator.String(), "created", now).
				AddRow(int64(2), id.String(), creator.String(), "status ACTIVE -> DELAYED", now))

		task, err := s.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusDelayed, task.Status)
		require.NotNil(t, task.PriorityID)
		assert.Equal(t, priority, *task.PriorityID)
		assert.Empty(t, task.AssigneeIDs)
		require.Len(t, task.Logs, 2)
		assert.Equal(t, "status ACTIVE -> DELAYED", task.Logs[1].Message)
	})
}

func newStoredTask(t *testing.T) *domain.Task {
	t.Helper()
	creator := uuid.New()
	task, err := domain.NewTask("Ship", "", time.Now().Add(time.Hour), nil, creator, []uuid.UUID{creator, uuid.New()})
	require.NoError(t, err)
	return task
}

func TestTaskStore_Create(t *testing.T) {
	t.Run("assigns readable id and inserts assignees", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresTaskStore(db, nil)
		task := newStoredTask(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(readable_id), 0) + 1 FROM tasks")).
			WillReturnRows(sqlmock.NewRows([]string{"readable_id"}).AddRow(int64(42)))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO task_assignees (task_id, user_id) VALUES ($1, $2), ($1, $3)")).
			WithArgs(task.ID.String(), task.AssigneeIDs[0].String(), task.AssigneeIDs[1].String()).
			WillReturnResult(sqlmock.NewResult(0, 2))

		require.NoError(t, s.Create(context.Background(), task))
		assert.Equal(t, int64(42), task.ReadableID)
	})

	t.Run("concurrent readable id collision", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresTaskStore(db, nil)
		task := newStoredTask(t)

		mock.ExpectQuery("INSERT INTO tasks").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "tasks_readable_id_key"})

		err := s.Create(context.Background(), task)
		assert.ErrorIs(t, err, store.ErrReadableIDTaken)
		assert.True(t, store.IsDuplicateError(err))
	})

	t.Run("invalid task is rejected before hitting the database", func(t *testing.T) {
		db, _ := newMock(t)
		s := NewPostgresTaskStore(db, nil)
		task := newStoredTask(t)
		task.Title = ""

		assert.ErrorIs(t, s.Create(context.Background(), task), domain.ErrValidation)
	})
}

func TestTaskStore_UpdateStatus(t *testing.T) {
	id, actor := uuid.New(), uuid.New()
	now := time.Now().UTC()
	entry := domain.TaskLog{TaskID: id, ActorID: actor, Message: "status ACTIVE -> COMPLETED", CreatedAt: now}

	t.Run("updates and logs", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresTaskStore(db, nil)

		mock.ExpectExec("UPDATE tasks SET status").
			WithArgs(id.String(), "COMPLETED", now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO task_logs").
			WithArgs(id.String(), actor.String(), entry.Message, now).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, s.UpdateStatus(context.Background(), id, domain.TaskStatusCompleted, entry))
	})

	t.Run("missing task", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresTaskStore(db, nil)

		mock.ExpectExec("UPDATE tasks SET status").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.UpdateStatus(context.Background(), id, domain.TaskStatusCompleted, entry)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestTaskStore_ReplaceAssignees(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresTaskStore(db, nil)
	id, actor, next := uuid.New(), uuid.New(), uuid.New()
	entry := domain.TaskLog{TaskID: id, ActorID: actor, Message: "assignees changed", CreatedAt: time.Now().UTC()}

	mock.ExpectExec("UPDATE tasks SET updated_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM task_assignees").WithArgs(id.String()).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO task_assignees").
		WithArgs(id.String(), next.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO task_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.ReplaceAssignees(context.Background(), id, []uuid.UUID{next}, entry))
}

func TestTaskStore_CountByStatus(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresTaskStore(db, nil)
	dept := uuid.New()

	mock.ExpectQuery("u.department_id = \\$1\\) GROUP BY t.status").
		WithArgs(dept.String()).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("ACTIVE", 4).
			AddRow("DELAYED", 1))

	counts, err := s.CountByStatus(context.Background(), &dept)
	require.NoError(t, err)
	assert.Equal(t, map[domain.TaskStatus]int{
		domain.TaskStatusActive:    4,
		domain.TaskStatusCompleted: 0,
		domain.TaskStatusDelayed:   1,
	}, counts)
}

var userRowColumns = []string{
	"id", "name", "email", "role", "department_id", "approved", "hashed_password", "created_at", "updated_at",
}

func TestUserStore_Create(t *testing.T) {
	t.Run("hashes the password", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresUserStore(db, bcrypt.MinCost, nil)
		user, err := domain.NewUser("Ada", "Ada@Example.com", "password123", nil)
		require.NoError(t, err)

		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Create(context.Background(), user))
		assert.Empty(t, user.Password)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte("password123")))
		assert.Equal(t, "ada@example.com", user.Email)
	})

	t.Run("email already taken", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresUserStore(db, bcrypt.MinCost, nil)
		user, err := domain.NewUser("Ada", "ada@example.com", "password123", nil)
		require.NoError(t, err)

		mock.ExpectExec("INSERT INTO users").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		assert.ErrorIs(t, s.Create(context.Background(), user), store.ErrEmailExists)
	})
}

func TestUserStore_GetByEmail(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresUserStore(db, bcrypt.MinCost, nil)
	id, dept := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("FROM users WHERE email = ").
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(id.String(), "Ada", "ada@example.com", "MANAGER", dept.String(), true, "hash", now, now))

	u, err := s.GetByEmail(context.Background(), "  ADA@example.com ")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, u.Role)
	require.NotNil(t, u.DepartmentID)
	assert.Equal(t, dept, *u.DepartmentID)
	assert.True(t, u.Approved)
}

func TestUserStore_GetMany(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresUserStore(db, bcrypt.MinCost, nil)
	a, b := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id IN ($1, $2)")).
		WithArgs(a.String(), b.String()).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(a.String(), "Ada", "ada@example.com", "EMPLOYEE", nil, true, "hash", now, now))

	users, err := s.GetMany(context.Background(), []uuid.UUID{a, b})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Nil(t, users[0].DepartmentID)

	empty, err := s.GetMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUserStore_SetApproved(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresUserStore(db, bcrypt.MinCost, nil)
	id := uuid.New()

	mock.ExpectExec("UPDATE users SET approved").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.SetApproved(context.Background(), id, true), store.ErrUserNotFound)
}

func TestDepartmentStore_GetByID(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresDepartmentStore(db)
	id := uuid.New()

	mock.ExpectQuery("FROM departments WHERE id = ").WillReturnError(sql.ErrNoRows)

	_, err := s.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrDepartmentNotFound)
}

func TestRunMigrations_RejectsUnknownCommand(t *testing.T) {
	err := RunMigrations(context.Background(), nil, "create", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported migration command")
}
