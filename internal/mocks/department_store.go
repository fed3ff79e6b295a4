package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/store"
)

// MockDepartmentStore is an in-memory store.DepartmentStore.
type MockDepartmentStore struct {
	mu    sync.RWMutex
	depts map[uuid.UUID]*domain.Department
}

// NewMockDepartmentStore creates a store holding depts.
func NewMockDepartmentStore(depts ...*domain.Department) *MockDepartmentStore {
	m := &MockDepartmentStore{depts: make(map[uuid.UUID]*domain.Department)}
	for _, d := range depts {
		m.depts[d.ID] = d
	}
	return m
}

var _ store.DepartmentStore = (*MockDepartmentStore)(nil)

// Create implements store.DepartmentStore.
func (m *MockDepartmentStore) Create(_ context.Context, dept *domain.Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depts[dept.ID] = dept
	return nil
}

// GetByID implements store.DepartmentStore.
func (m *MockDepartmentStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.depts[id]
	if !ok {
		return nil, store.ErrDepartmentNotFound
	}
	return d, nil
}

// List implements store.DepartmentStore.
func (m *MockDepartmentStore) List(_ context.Context) ([]*domain.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Department, 0, len(m.depts))
	for _, d := range m.depts {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
