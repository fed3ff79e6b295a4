package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/logger"
	"github.com/dexten32/Task-Management-System-sub000/internal/store"
)

const taskColumns = `t.id, t.readable_id, t.title, t.description, t.deadline, t.status,
	t.priority_id, t.created_by, t.created_at, t.updated_at,
	COALESCE((SELECT string_agg(ta.user_id::text, ',' ORDER BY ta.user_id)
	          FROM task_assignees ta WHERE ta.task_id = t.id), '')`

// PostgresTaskStore implements store.TaskStore.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a PostgresTaskStore over a connection or transaction.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{db: db, logger: logger.With("component", "task_store")}
}

var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

// List implements store.TaskStore.
func (s *PostgresTaskStore) List(ctx context.Context, q store.TaskQuery) (store.TaskPage, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	a := &args{}
	where := renderPredicate(q.Predicate, a)

	var total int
	countSQL := "SELECT count(*) FROM tasks t WHERE " + where
	if err := s.db.QueryRowContext(ctx, countSQL, a.values...).Scan(&total); err != nil {
		log.Error("failed to count tasks", "error", err)
		return store.TaskPage{}, store.NewStoreError("task", "list", "count failed", MapError(err))
	}

	listSQL := fmt.Sprintf(
		"SELECT %s FROM tasks t WHERE %s ORDER BY t.created_at DESC, t.readable_id DESC LIMIT %s OFFSET %s",
		taskColumns, where, a.add(q.Limit), a.add(q.Offset),
	)
	rows, err := s.db.QueryContext(ctx, listSQL, a.values...)
	if err != nil {
		log.Error("failed to list tasks", "error", err)
		return store.TaskPage{}, store.NewStoreError("task", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	page := store.TaskPage{Tasks: []*domain.Task{}, Total: total}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return store.TaskPage{}, store.NewStoreError("task", "list", "scan failed", err)
		}
		page.Tasks = append(page.Tasks, t)
	}
	if err := rows.Err(); err != nil {
		return store.TaskPage{}, store.NewStoreError("task", "list", "iteration failed", MapError(err))
	}
	return page, nil
}

// GetByID implements store.TaskStore.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks t WHERE t.id = $1", id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("task", "get", "query failed", MapError(err))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, actor_id, message, created_at
		 FROM task_logs WHERE task_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return nil, store.NewStoreError("task", "get", "log query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var l domain.TaskLog
		if err := rows.Scan(&l.ID, &l.TaskID, &l.ActorID, &l.Message, &l.CreatedAt); err != nil {
			return nil, store.NewStoreError("task", "get", "log scan failed", err)
		}
		t.Logs = append(t.Logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", "get", "log iteration failed", MapError(err))
	}
	return t, nil
}

// Create implements store.TaskStore.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO tasks (id, readable_id, title, description, deadline, status,
		                    priority_id, created_by, created_at, updated_at)
		 VALUES ($1, (SELECT COALESCE(MAX(readable_id), 0) + 1 FROM tasks),
		         $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING readable_id`,
		task.ID, task.Title, task.Description, task.Deadline, string(task.Status),
		nullUUID(task.PriorityID), task.CreatedBy, task.CreatedAt, task.UpdatedAt,
	).Scan(&task.ReadableID)
	if err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrReadableIDTaken) {
			log.Warn("readable task id collided with a concurrent insert", "task_id", task.ID)
		}
		return store.NewStoreError("task", "create", "insert failed", mapped)
	}

	if err := s.insertAssignees(ctx, task.ID, task.AssigneeIDs); err != nil {
		return store.NewStoreError("task", "create", "assignee insert failed", err)
	}
	return nil
}

// UpdateStatus implements store.TaskStore.
func (s *PostgresTaskStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.TaskStatus,
	entry domain.TaskLog,
) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status = $2, updated_at = $3 WHERE id = $1",
		id, string(status), entry.CreatedAt)
	if err != nil {
		return store.NewStoreError("task", "update_status", "update failed", MapError(err))
	}
	if err := CheckRowsAffected(res, store.ErrTaskNotFound); err != nil {
		return err
	}
	return s.appendLog(ctx, entry)
}

// ReplaceAssignees implements store.TaskStore.
func (s *PostgresTaskStore) ReplaceAssignees(
	ctx context.Context,
	id uuid.UUID,
	assignees []uuid.UUID,
	entry domain.TaskLog,
) error {
	res, err := s.db.ExecContext(ctx, "UPDATE tasks SET updated_at = $2 WHERE id = $1", id, entry.CreatedAt)
	if err != nil {
		return store.NewStoreError("task", "replace_assignees", "update failed", MapError(err))
	}
	if err := CheckRowsAffected(res, store.ErrTaskNotFound); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM task_assignees WHERE task_id = $1", id); err != nil {
		return store.NewStoreError("task", "replace_assignees", "delete failed", MapError(err))
	}
	if err := s.insertAssignees(ctx, id, assignees); err != nil {
		return store.NewStoreError("task", "replace_assignees", "insert failed", err)
	}
	return s.appendLog(ctx, entry)
}

// CountByStatus implements store.TaskStore.
func (s *PostgresTaskStore) CountByStatus(ctx context.Context, departmentID *uuid.UUID) (map[domain.TaskStatus]int, error) {
	query := "SELECT t.status, count(*) FROM tasks t"
	var params []any
	if departmentID != nil {
		query += ` WHERE EXISTS (SELECT 1 FROM task_assignees ta JOIN users u ON u.id = ta.user_id
		           WHERE ta.task_id = t.id AND u.department_id = $1)`
		params = append(params, *departmentID)
	}
	query += " GROUP BY t.status"

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, store.NewStoreError("task", "count", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	counts := map[domain.TaskStatus]int{
		domain.TaskStatusActive:    0,
		domain.TaskStatusCompleted: 0,
		domain.TaskStatusDelayed:   0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, store.NewStoreError("task", "count", "scan failed", err)
		}
		counts[domain.TaskStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", "count", "iteration failed", MapError(err))
	}
	return counts, nil
}

func (s *PostgresTaskStore) insertAssignees(ctx context.Context, taskID uuid.UUID, assignees []uuid.UUID) error {
	if len(assignees) == 0 {
		return nil
	}
	a := &args{}
	task := a.add(taskID)
	values := make([]string, len(assignees))
	for i, id := range assignees {
		values[i] = "(" + task + ", " + a.add(id) + ")"
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO task_assignees (task_id, user_id) VALUES "+strings.Join(values, ", "),
		a.values...)
	return MapError(err)
}

func (s *PostgresTaskStore) appendLog(ctx context.Context, entry domain.TaskLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO task_logs (task_id, actor_id, message, created_at) VALUES ($1, $2, $3, $4)",
		entry.TaskID, entry.ActorID, entry.Message, entry.CreatedAt)
	if err != nil {
		return store.NewStoreError("task", "append_log", "insert failed", MapError(err))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t         domain.Task
		status    string
		priority  uuid.NullUUID
		assignees string
	)
	err := row.Scan(
		&t.ID, &t.ReadableID, &t.Title, &t.Description, &t.Deadline, &status,
		&priority, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt, &assignees,
	)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TaskStatus(status)
	if priority.Valid {
		id := priority.UUID
		t.PriorityID = &id
	}
	t.AssigneeIDs, err = parseIDList(assignees)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseIDList(s string) ([]uuid.UUID, error) {
	if s == "" {
		return []uuid.UUID{}, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid assignee id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
