package mocks

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/store"
)

// MockUserStore is an in-memory store.UserStore.
type MockUserStore struct {
	CreateFn      func(ctx context.Context, user *domain.User) error
	GetByIDFn     func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmailFn  func(ctx context.Context, email string) (*domain.User, error)
	SetApprovedFn func(ctx context.Context, id uuid.UUID, approved bool) error
	GetManyFn     func(ctx context.Context, ids []uuid.UUID) ([]*domain.User, error)

	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

// NewMockUserStore creates an empty MockUserStore.
func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[uuid.UUID]*domain.User)}
}

var _ store.UserStore = (*MockUserStore)(nil)

// Add stores u as-is, bypassing validation and hashing.
func (m *MockUserStore) Add(u *domain.User) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return u
}

// Create implements store.UserStore. Passwords are hashed at bcrypt.MinCost.
func (m *MockUserStore) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, user)
	}
	if err := user.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return store.ErrEmailExists
		}
	}
	if user.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.MinCost)
		if err != nil {
			return err
		}
		user.HashedPassword = string(hash)
		user.Password = ""
	}
	m.users[user.ID] = user
	return nil
}

// GetByID implements store.UserStore.
func (m *MockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

// GetByEmail implements store.UserStore.
func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetByEmailFn != nil {
		return m.GetByEmailFn(ctx, email)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

// GetMany implements store.UserStore.
func (m *MockUserStore) GetMany(ctx context.Context, ids []uuid.UUID) ([]*domain.User, error) {
	if m.GetManyFn != nil {
		return m.GetManyFn(ctx, ids)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*domain.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// SetApproved implements store.UserStore.
func (m *MockUserStore) SetApproved(ctx context.Context, id uuid.UUID, approved bool) error {
	if m.SetApprovedFn != nil {
		return m.SetApprovedFn(ctx, id, approved)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	u.Approved = approved
	return nil
}

// ListByRole implements store.UserStore.
func (m *MockUserStore) ListByRole(_ context.Context, role domain.Role) ([]*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*domain.User{}
	for _, u := range m.users {
		if u.Role == role && u.Approved {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// WithTx implements store.UserStore. The transaction is ignored.
func (m *MockUserStore) WithTx(*sql.Tx) store.UserStore {
	return m
}

// departmentsOf returns the departments of the given users.
func (m *MockUserStore) departmentsOf(ids []uuid.UUID) []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []uuid.UUID
	for _, id := range ids {
		if u, ok := m.users[id]; ok && u.DepartmentID != nil {
			out = append(out, *u.DepartmentID)
		}
	}
	return out
}
