package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/store"
	"github.com/dexten32/Task-Management-System-sub000/internal/visibility"
)

// MockTaskStore is an in-memory store.TaskStore. Department predicates are
// evaluated against the users held by the linked MockUserStore.
type MockTaskStore struct {
	ListFn             func(ctx context.Context, q store.TaskQuery) (store.TaskPage, error)
	CreateFn           func(ctx context.Context, task *domain.Task) error
	UpdateStatusFn     func(ctx context.Context, id uuid.UUID, status domain.TaskStatus, entry domain.TaskLog) error
	ReplaceAssigneesFn func(ctx context.Context, id uuid.UUID, assignees []uuid.UUID, entry domain.TaskLog) error

	// ListCalls counts List invocations, to observe cache hits.
	ListCalls int

	users  *MockUserStore
	mu     sync.Mutex
	tasks  map[uuid.UUID]*domain.Task
	nextID int64
	logID  int64
}

// NewMockTaskStore creates an empty MockTaskStore.
func NewMockTaskStore(users *MockUserStore) *MockTaskStore {
	return &MockTaskStore{users: users, tasks: make(map[uuid.UUID]*domain.Task)}
}

var _ store.TaskStore = (*MockTaskStore)(nil)

func (m *MockTaskStore) facts(t *domain.Task) visibility.TaskFacts {
	var depts []uuid.UUID
	if m.users != nil {
		depts = m.users.departmentsOf(t.AssigneeIDs)
	}
	return visibility.TaskFacts{CreatorID: t.CreatedBy, AssigneeIDs: t.AssigneeIDs, AssigneeDepartmentIDs: depts}
}

// List implements store.TaskStore.
func (m *MockTaskStore) List(ctx context.Context, q store.TaskQuery) (store.TaskPage, error) {
	m.mu.Lock()
	m.ListCalls++
	m.mu.Unlock()
	if m.ListFn != nil {
		return m.ListFn(ctx, q)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*domain.Task
	for _, t := range m.tasks {
		if q.Predicate.Matches(m.facts(t)) {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ReadableID > matched[j].ReadableID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := store.TaskPage{Tasks: []*domain.Task{}, Total: len(matched)}
	for i := q.Offset; i < len(matched) && len(page.Tasks) < q.Limit; i++ {
		cp := *matched[i]
		cp.Logs = nil
		page.Tasks = append(page.Tasks, &cp)
	}
	return page, nil
}

// GetByID implements store.TaskStore.
func (m *MockTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *t
	cp.AssigneeIDs = append([]uuid.UUID(nil), t.AssigneeIDs...)
	cp.Logs = append([]domain.TaskLog(nil), t.Logs...)
	return &cp, nil
}

// Create implements store.TaskStore.
func (m *MockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, task)
	}
	if err := task.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	task.ReadableID = m.nextID
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

// UpdateStatus implements store.TaskStore.
func (m *MockTaskStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus, entry domain.TaskLog) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, status, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	t.Status = status
	t.UpdatedAt = entry.CreatedAt
	m.appendLog(t, entry)
	return nil
}

// ReplaceAssignees implements store.TaskStore.
func (m *MockTaskStore) ReplaceAssignees(ctx context.Context, id uuid.UUID, assignees []uuid.UUID, entry domain.TaskLog) error {
	if m.ReplaceAssigneesFn != nil {
		return m.ReplaceAssigneesFn(ctx, id, assignees, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	t.AssigneeIDs = append([]uuid.UUID(nil), assignees...)
	t.UpdatedAt = entry.CreatedAt
	m.appendLog(t, entry)
	return nil
}

func (m *MockTaskStore) appendLog(t *domain.Task, entry domain.TaskLog) {
	m.logID++
	entry.ID = m.logID
	t.Logs = append(t.Logs, entry)
}

// CountByStatus implements store.TaskStore.
func (m *MockTaskStore) CountByStatus(_ context.Context, departmentID *uuid.UUID) (map[domain.TaskStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[domain.TaskStatus]int{
		domain.TaskStatusActive:    0,
		domain.TaskStatusCompleted: 0,
		domain.TaskStatusDelayed:   0,
	}
	for _, t := range m.tasks {
		if departmentID != nil {
			p := visibility.Predicate{Scope: []visibility.Clause{{Kind: visibility.AssigneeDepartment, ID: *departmentID}}}
			if !p.Matches(m.facts(t)) {
				continue
			}
		}
		counts[t.Status]++
	}
	return counts, nil
}

// WithTx implements store.TaskStore. The transaction is ignored.
func (m *MockTaskStore) WithTx(*sql.Tx) store.TaskStore {
	return m
}
