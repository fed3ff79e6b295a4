package visibility

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
)

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func TestResolve_MissingCaller(t *testing.T) {
	_, err := Resolve(nil, ViewRecent, Filters{})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = Resolve(&domain.Caller{Role: domain.RoleAdmin}, ViewRecent, Filters{})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestResolve_UnknownView(t *testing.T) {
	_, err := Resolve(&domain.Caller{ID: uuid.New(), Role: domain.RoleAdmin}, View("all_tasks"), Filters{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestResolve_Recent(t *testing.T) {
	dept := uuid.New()
	other := uuid.New()

	t.Run("admin is unrestricted", func(t *testing.T) {
		c := &domain.Caller{ID: uuid.New(), Role: domain.RoleAdmin}
		res, err := Resolve(c, ViewRecent, Filters{})

		require.NoError(t, err)
		assert.Equal(t, ScopeAdmin, res.Scope)
		assert.True(t, res.Predicate.Unrestricted)
		assert.Empty(t, res.Predicate.Filters)
		assert.False(t, res.Filtered)
	})

	t.Run("admin filters are AND'ed", func(t *testing.T) {
		c := &domain.Caller{ID: uuid.New(), Role: domain.RoleAdmin}
		res, err := Resolve(c, ViewRecent, Filters{AssigneeID: ptr(other), DepartmentID: ptr(dept)})

		require.NoError(t, err)
		assert.True(t, res.Filtered)
		assert.ElementsMatch(t, []Clause{
			{Kind: AssigneeIs, ID: other},
			{Kind: AssigneeDepartment, ID: dept},
		}, res.Predicate.Filters)
	})

	t.Run("manager with department", func(t *testing.T) {
		c := &domain.Caller{ID: uuid.New(), Role: domain.RoleManager, DepartmentID: ptr(dept)}
		res, err := Resolve(c, ViewRecent, Filters{})

		require.NoError(t, err)
		assert.Equal(t, "MANAGER:"+dept.String(), res.Scope)
		assert.Equal(t, []Clause{
			{Kind: AssignedBy, ID: c.ID},
			{Kind: AssigneeDepartment, ID: dept},
		}, res.Predicate.Scope)
	})

	t.Run("manager department filter ignored with assignee filter", func(t *testing.T) {
		c := &domain.Caller{ID: uuid.New(), Role: domain.RoleManager, DepartmentID: ptr(dept)}
		res, err := Resolve(c, ViewRecent, Filters{AssigneeID: ptr(other), DepartmentID: ptr(uuid.New())})

		require.NoError(t, err)
		assert.Equal(t, []Clause{{Kind: AssigneeIs, ID: other}}, res.Predicate.Filters)
	})

	t.Run("manager without department falls back to own tasks", func(t *testing.T) {
		c := &domain.Caller{ID: uuid.New(), Role: domain.RoleManager}
		res, err := Resolve(c, ViewRecent, Filters{})

		require.NoError(t, err)
		assert.Equal(t, "USER:"+c.ID.String(), res.Scope)
		assert.Equal(t, []Clause{{Kind: AssignedBy, ID: c.ID}}, res.Predicate.Scope)
	})

	t.Run("employee sees what they assigned", func(t *testing.T) {
		c := &domain.Caller{ID: uuid.New(), Role: domain.RoleEmployee, DepartmentID: ptr(dept)}
		res, err := Resolve(c, ViewRecent, Filters{AssignedByID: ptr(other)})

		require.NoError(t, err)
		assert.Equal(t, "USER:"+c.ID.String(), res.Scope)
		assert.False(t, res.Predicate.Matches(TaskFacts{CreatorID: other}))
		assert.False(t, res.Predicate.Matches(TaskFacts{CreatorID: c.ID}))
	})
}

func TestResolve_Mine(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleManager, domain.RoleEmployee} {
		c := &domain.Caller{ID: uuid.New(), Role: role}
		res, err := Resolve(c, ViewMine, Filters{})

		require.NoError(t, err)
		assert.Equal(t, c.ID.String(), res.Scope)
		assert.True(t, res.Predicate.Matches(TaskFacts{AssigneeIDs: []uuid.UUID{uuid.New(), c.ID}}))
		assert.False(t, res.Predicate.Matches(TaskFacts{CreatorID: c.ID}))
	}
}

// An ADMIN with no filters sees every task any other caller can see.
func TestResolve_AdminSeesSuperset(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	depts := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	users := make([]uuid.UUID, 8)
	for i := range users {
		users[i] = uuid.New()
	}
	pick := func(ids []uuid.UUID) uuid.UUID { return ids[rng.Intn(len(ids))] }

	tasks := make([]TaskFacts, 200)
	for i := range tasks {
		tasks[i] = TaskFacts{
			CreatorID:             pick(users),
			AssigneeIDs:           []uuid.UUID{pick(users), pick(users)},
			AssigneeDepartmentIDs: []uuid.UUID{pick(depts)},
		}
	}

	admin, err := Resolve(&domain.Caller{ID: uuid.New(), Role: domain.RoleAdmin}, ViewRecent, Filters{})
	require.NoError(t, err)

	callers := []*domain.Caller{
		{ID: pick(users), Role: domain.RoleManager, DepartmentID: ptr(pick(depts))},
		{ID: pick(users), Role: domain.RoleManager},
		{ID: pick(users), Role: domain.RoleEmployee},
	}
	for _, c := range callers {
		for _, view := range []View{ViewRecent, ViewMine} {
			res, err := Resolve(c, view, Filters{})
			require.NoError(t, err)
			for _, task := range tasks {
				if res.Predicate.Matches(task) {
					assert.True(t, admin.Predicate.Matches(task))
				}
			}
		}
	}
}
