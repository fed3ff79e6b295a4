package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/cache"
	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/domain/lifecycle"
	"github.com/dexten32/Task-Management-System-sub000/internal/jobs"
	"github.com/dexten32/Task-Management-System-sub000/internal/notify"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/logger"
	"github.com/dexten32/Task-Management-System-sub000/internal/store"
	"github.com/dexten32/Task-Management-System-sub000/internal/visibility"
)

// MaxPageSize bounds the limit of a listing request.
const MaxPageSize = 100

// ListInput selects a page of a listing. Zero Page and Limit take defaults.
type ListInput struct {
	Page    int
	Limit   int
	Filters visibility.Filters
}

// ListResult is a serialized store.TaskPage and how it was served.
type ListResult struct {
	Payload []byte
	Outcome cache.Outcome
}

// CreateTaskInput carries the fields of a new task.
type CreateTaskInput struct {
	Title       string
	Description string
	Deadline    time.Time
	PriorityID  *uuid.UUID
	AssigneeIDs []uuid.UUID
}

// ReportRequest is the outcome of RequestReport. Queued is false when the
// queue was unavailable; the failure has been logged.
type ReportRequest struct {
	JobID  string `json:"job_id,omitempty"`
	Queued bool   `json:"queued"`
}

// TaskService exposes task reads and mutations to the HTTP layer.
type TaskService interface {
	ListRecent(ctx context.Context, caller domain.Caller, in ListInput) (*ListResult, error)
	ListMine(ctx context.Context, caller domain.Caller, in ListInput) (*ListResult, error)
	Get(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.Task, error)
	Create(ctx context.Context, caller domain.Caller, in CreateTaskInput) (*domain.Task, error)
	ChangeStatus(ctx context.Context, caller domain.Caller, id uuid.UUID, requested string) (*domain.Task, error)
	ChangeAssignees(ctx context.Context, caller domain.Caller, id uuid.UUID, assignees []uuid.UUID) (*domain.Task, error)
	RequestReport(ctx context.Context, caller domain.Caller, departmentID *uuid.UUID) (*ReportRequest, error)
}

// Lister is the cache-facing half of the cache layer.
type Lister interface {
	PageSize() int
	Cacheable(page, limit int, filtered bool) bool
	ReadThrough(ctx context.Context, key string, load cache.Loader) ([]byte, cache.Outcome, error)
}

// TaskCache is everything TaskService needs from the cache layer.
type TaskCache interface {
	Lister
	Invalidator
}

type taskServiceImpl struct {
	tasks    store.TaskStore
	users    store.UserStore
	tx       store.Transactor
	cache    TaskCache
	enqueuer Enqueuer
	logger   *slog.Logger
	now      func() time.Time
}

// NewTaskService creates a TaskService.
func NewTaskService(
	tasks store.TaskStore,
	users store.UserStore,
	tx store.Transactor,
	cache TaskCache,
	enqueuer Enqueuer,
	logger *slog.Logger,
) TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &taskServiceImpl{
		tasks:    tasks,
		users:    users,
		tx:       tx,
		cache:    cache,
		enqueuer: enqueuer,
		logger:   logger.With("component", "task_service"),
		now:      time.Now,
	}
}

// ListRecent implements TaskService.
func (s *taskServiceImpl) ListRecent(ctx context.Context, caller domain.Caller, in ListInput) (*ListResult, error) {
	return s.list(ctx, caller, visibility.ViewRecent, in)
}

// ListMine implements TaskService. Filters are ignored.
func (s *taskServiceImpl) ListMine(ctx context.Context, caller domain.Caller, in ListInput) (*ListResult, error) {
	in.Filters = visibility.Filters{}
	return s.list(ctx, caller, visibility.ViewMine, in)
}

func (s *taskServiceImpl) list(ctx context.Context, caller domain.Caller, view visibility.View, in ListInput) (*ListResult, error) {
	page, limit, err := s.pagination(in)
	if err != nil {
		return nil, err
	}
	res, err := visibility.Resolve(&caller, view, in.Filters)
	if err != nil {
		return nil, err
	}

	load := func(ctx context.Context) ([]byte, error) {
		p, err := s.tasks.List(ctx, store.TaskQuery{
			Predicate: res.Predicate,
			Offset:    (page - 1) * limit,
			Limit:     limit,
		})
		if err != nil {
			return nil, NewServiceError("list_"+string(view), "failed to load tasks", err)
		}
		return json.Marshal(p)
	}

	if !s.cache.Cacheable(page, limit, res.Filtered) {
		data, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return &ListResult{Payload: data, Outcome: cache.Bypass}, nil
	}

	data, outcome, err := s.cache.ReadThrough(ctx, cache.Key(view, res.Scope), load)
	if err != nil {
		return nil, err
	}
	return &ListResult{Payload: data, Outcome: outcome}, nil
}

func (s *taskServiceImpl) pagination(in ListInput) (int, int, error) {
	page, limit := in.Page, in.Limit
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = s.cache.PageSize()
	}
	if page < 1 {
		return 0, 0, domain.NewValidationError("page", "must be at least 1", nil)
	}
	if limit < 1 || limit > MaxPageSize {
		return 0, 0, domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", MaxPageSize), nil)
	}
	return page, limit, nil
}

// Get implements TaskService. The caller must be able to see the task in
// recent_tasks or be one of its assignees.
func (s *taskServiceImpl) Get(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.Task, error) {
	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.HasAssignee(caller.ID) {
		return task, nil
	}

	res, err := visibility.Resolve(&caller, visibility.ViewRecent, visibility.Filters{})
	if err != nil {
		return nil, err
	}
	facts := visibility.TaskFacts{CreatorID: task.CreatedBy, AssigneeIDs: task.AssigneeIDs}
	if !res.Predicate.Unrestricted {
		assignees, err := s.users.GetMany(ctx, task.AssigneeIDs)
		if err != nil {
			return nil, err
		}
		facts.AssigneeDepartmentIDs = departments(assignees)
	}
	if !res.Predicate.Matches(facts) {
		return nil, ErrTaskNotVisible
	}
	return task, nil
}

// Create implements TaskService.
func (s *taskServiceImpl) Create(ctx context.Context, caller domain.Caller, in CreateTaskInput) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}

	task, err := domain.NewTask(in.Title, in.Description, in.Deadline, in.PriorityID, caller.ID, in.AssigneeIDs)
	if err != nil {
		return nil, err
	}
	assignees, err := s.checkAssignees(ctx, caller, task.AssigneeIDs)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.tasks.WithTx(tx).Create(ctx, task)
	})
	if err != nil {
		log.Error("failed to create task", "error", err, "task_id", task.ID)
		return nil, wrapUnexpected("create_task", "failed to save task", err)
	}
	log.Info("task created", "task_id", task.ID, "readable_id", task.ReadableID, "assignees", len(task.AssigneeIDs))

	var ob outbox
	ob.invalidate(s.cache.MutationKeys(cache.Mutation{
		CreatorID:             task.CreatedBy,
		AssigneeIDs:           task.AssigneeIDs,
		AssigneeDepartmentIDs: departments(assignees),
	})...)
	for _, u := range assignees {
		ob.enqueue(jobs.SendEmail, notify.EmailPayload{
			To:      []string{u.Email},
			Subject: fmt.Sprintf("Task #%d assigned to you: %s", task.ReadableID, task.Title),
			Body: fmt.Sprintf("You have been assigned task #%d \"%s\", due %s.\n\n%s",
				task.ReadableID, task.Title, task.Deadline.Format(time.RFC1123), task.Description),
		})
	}
	ob.flush(ctx, s.cache, s.enqueuer, s.logger)

	return task, nil
}

// ChangeStatus implements TaskService.
func (s *taskServiceImpl) ChangeStatus(ctx context.Context, caller domain.Caller, id uuid.UUID, requested string) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	want, err := domain.ParseTaskStatus(requested)
	if err != nil {
		return nil, err
	}

	var task *domain.Task
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.tasks.WithTx(tx)
		current, err := txTasks.GetByID(ctx, id)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		next, err := lifecycle.Decide(lifecycle.TransitionRequest{
			Current:     current.Status,
			Requested:   want,
			Deadline:    current.Deadline,
			Now:         now,
			Caller:      caller,
			CreatorID:   current.CreatedBy,
			AssigneeIDs: current.AssigneeIDs,
		})
		if err != nil {
			return err
		}

		entry := domain.TaskLog{
			TaskID:    current.ID,
			ActorID:   caller.ID,
			Message:   fmt.Sprintf("status changed from %s to %s", current.Status, next),
			CreatedAt: now,
		}
		if err := txTasks.UpdateStatus(ctx, current.ID, next, entry); err != nil {
			return err
		}
		current.Status = next
		current.UpdatedAt = now
		current.Logs = append(current.Logs, entry)
		task = current
		return nil
	})
	if err != nil {
		return nil, wrapUnexpected("change_status", "failed to update task status", err)
	}
	log.Info("task status changed", "task_id", task.ID, "status", string(task.Status), "actor_id", caller.ID)

	var ob outbox
	ob.invalidate(s.cache.MutationKeys(s.mutation(ctx, task, task.AssigneeIDs))...)
	if creator, err := s.users.GetByID(ctx, task.CreatedBy); err == nil {
		ob.enqueue(jobs.SendEmail, notify.EmailPayload{
			To:      []string{creator.Email},
			Subject: fmt.Sprintf("Task #%d is now %s", task.ReadableID, task.Status),
			Body:    fmt.Sprintf("Task #%d \"%s\" moved to %s.", task.ReadableID, task.Title, task.Status),
		})
	} else {
		log.Warn("could not load task creator for notification", "task_id", task.ID, "error", err)
	}
	ob.flush(ctx, s.cache, s.enqueuer, s.logger)

	return task, nil
}

// ChangeAssignees implements TaskService. Only elevated roles and the task's
// creator may reassign; the new set must satisfy the assignment rules.
func (s *taskServiceImpl) ChangeAssignees(
	ctx context.Context,
	caller domain.Caller,
	id uuid.UUID,
	assigneeIDs []uuid.UUID,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}

	assigneeIDs = domain.DedupeIDs(assigneeIDs)
	if len(assigneeIDs) == 0 {
		return nil, domain.NewValidationError("assignee_ids", "must contain at least one user", nil)
	}
	assignees, err := s.checkAssignees(ctx, caller, assigneeIDs)
	if err != nil {
		return nil, err
	}

	var (
		task  *domain.Task
		added []*domain.User
	)
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.tasks.WithTx(tx)
		current, err := txTasks.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !caller.Role.Elevated() && current.CreatedBy != caller.ID {
			return fmt.Errorf("%w: only the creator or elevated roles may reassign a task", domain.ErrForbidden)
		}

		for _, u := range assignees {
			if !current.HasAssignee(u.ID) {
				added = append(added, u)
			}
		}

		now := s.now().UTC()
		entry := domain.TaskLog{
			TaskID:    current.ID,
			ActorID:   caller.ID,
			Message:   fmt.Sprintf("assignees changed: %s", joinIDs(assigneeIDs)),
			CreatedAt: now,
		}
		if err := txTasks.ReplaceAssignees(ctx, current.ID, assigneeIDs, entry); err != nil {
			return err
		}
		current.AssigneeIDs = assigneeIDs
		current.UpdatedAt = now
		current.Logs = append(current.Logs, entry)
		task = current
		return nil
	})
	if err != nil {
		return nil, wrapUnexpected("change_assignees", "failed to replace assignees", err)
	}
	log.Info("task assignees changed", "task_id", task.ID, "assignees", len(assigneeIDs), "added", len(added))

	var ob outbox
	ob.invalidate(s.cache.MutationKeys(cache.Mutation{
		CreatorID:             task.CreatedBy,
		AssigneeIDs:           task.AssigneeIDs,
		AssigneeDepartmentIDs: departments(assignees),
	})...)
	for _, u := range added {
		ob.enqueue(jobs.SendEmail, notify.EmailPayload{
			To:      []string{u.Email},
			Subject: fmt.Sprintf("Task #%d assigned to you: %s", task.ReadableID, task.Title),
			Body:    fmt.Sprintf("You have been added to task #%d \"%s\".", task.ReadableID, task.Title),
		})
	}
	ob.flush(ctx, s.cache, s.enqueuer, s.logger)

	return task, nil
}

// RequestReport implements TaskService. ADMIN may report on any department
// or all of them; MANAGER only on their own department.
func (s *taskServiceImpl) RequestReport(ctx context.Context, caller domain.Caller, departmentID *uuid.UUID) (*ReportRequest, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}

	switch caller.Role {
	case domain.RoleAdmin:
	case domain.RoleManager:
		if !caller.HasDepartment() {
			return nil, fmt.Errorf("%w: manager has no department", domain.ErrForbidden)
		}
		if departmentID != nil && *departmentID != *caller.DepartmentID {
			return nil, fmt.Errorf("%w: managers may only report on their own department", domain.ErrForbidden)
		}
		departmentID = caller.DepartmentID
	default:
		return nil, fmt.Errorf("%w: reports require an elevated role", domain.ErrForbidden)
	}

	requester := caller.ID
	h, err := s.enqueuer.Enqueue(ctx, jobs.GenerateReport, notify.ReportPayload{
		RequestedBy:  &requester,
		DepartmentID: departmentID,
		RequestedAt:  s.now().UTC(),
	})
	if err != nil {
		log.Error("failed to enqueue report job", "error", err, "requested_by", caller.ID)
		return &ReportRequest{Queued: false}, nil
	}
	return &ReportRequest{JobID: h.ID, Queued: true}, nil
}

// checkAssignees loads the requested assignees and applies the assignment
// rules: ADMIN may assign anyone, MANAGER users of their department (only
// themselves without one), everyone else only themselves. Every assignee
// must exist and be approved.
func (s *taskServiceImpl) checkAssignees(ctx context.Context, caller domain.Caller, ids []uuid.UUID) ([]*domain.User, error) {
	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, NewServiceError("check_assignees", "failed to load assignees", err)
	}
	byID := make(map[uuid.UUID]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	out := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			return nil, domain.NewValidationError("assignee_ids", fmt.Sprintf("unknown user %s", id), nil)
		}
		if !u.Approved {
			return nil, domain.NewValidationError("assignee_ids", fmt.Sprintf("user %s is not approved", id), nil)
		}
		if !mayAssign(caller, u) {
			return nil, ErrAssignmentNotAllowed
		}
		out = append(out, u)
	}
	return out, nil
}

func mayAssign(caller domain.Caller, u *domain.User) bool {
	switch {
	case caller.Role == domain.RoleAdmin:
		return true
	case caller.Role == domain.RoleManager && caller.HasDepartment():
		return u.ID == caller.ID || u.InDepartment(*caller.DepartmentID)
	default:
		return u.ID == caller.ID
	}
}

// mutation builds the invalidation input for task. Assignee departments are
// loaded only when the cache drops scoped keys; a lookup failure leaves them
// out.
func (s *taskServiceImpl) mutation(ctx context.Context, task *domain.Task, assigneeIDs []uuid.UUID) cache.Mutation {
	m := cache.Mutation{CreatorID: task.CreatedBy, AssigneeIDs: assigneeIDs}
	if !s.cache.ScopedKeys() {
		return m
	}
	users, err := s.users.GetMany(ctx, assigneeIDs)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("could not load assignee departments", "task_id", task.ID, "error", err)
		return m
	}
	m.AssigneeDepartmentIDs = departments(users)
	return m
}

func departments(users []*domain.User) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		if u.DepartmentID != nil {
			out = append(out, *u.DepartmentID)
		}
	}
	return domain.DedupeIDs(out)
}

func joinIDs(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}
