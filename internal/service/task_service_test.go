package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexten32/Task-Management-System-sub000/internal/cache"
	"github.com/dexten32/Task-Management-System-sub000/internal/config"
	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
	"github.com/dexten32/Task-Management-System-sub000/internal/jobs"
	"github.com/dexten32/Task-Management-System-sub000/internal/mocks"
	"github.com/dexten32/Task-Management-System-sub000/internal/notify"
	"github.com/dexten32/Task-Management-System-sub000/internal/store"
	"github.com/dexten32/Task-Management-System-sub000/internal/visibility"
)

type enqueued struct {
	name    jobs.Name
	payload any
}

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []enqueued
	err  error
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, name jobs.Name, payload any) (jobs.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return jobs.Handle{}, r.err
	}
	r.jobs = append(r.jobs, enqueued{name: name, payload: payload})
	return jobs.Handle{ID: uuid.NewString(), Name: name}, nil
}

func (r *recordingEnqueuer) emailsTo() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, j := range r.jobs {
		if p, ok := j.payload.(notify.EmailPayload); ok {
			out = append(out, p.To...)
		}
	}
	return out
}

var (
	deadline   = time.Date(2025, 3, 1, 17, 0, 0, 0, time.UTC)
	beforeDue  = deadline.Add(-time.Hour)
	afterDue   = deadline.Add(time.Hour)
	testCacheC = config.CacheConfig{TTL: 10 * time.Minute, PageSize: 10, OpTimeout: time.Second}
)

type fixture struct {
	users *mocks.MockUserStore
	tasks *mocks.MockTaskStore
	tx    *mocks.MockTransactor
	enq   *recordingEnqueuer
	svc   *taskServiceImpl

	sales, ops uuid.UUID

	admin, manager, employee, colleague, outsider, pending *domain.User
}

func user(name string, role domain.Role, dept *uuid.UUID, approved bool) *domain.User {
	return &domain.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        name + "@example.com",
		Role:         role,
		DepartmentID: dept,
		Approved:     approved,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{sales: uuid.New(), ops: uuid.New()}

	f.users = mocks.NewMockUserStore()
	f.admin = f.users.Add(user("admin", domain.RoleAdmin, nil, true))
	f.manager = f.users.Add(user("manager", domain.RoleManager, &f.sales, true))
	f.employee = f.users.Add(user("employee", domain.RoleEmployee, &f.sales, true))
	f.colleague = f.users.Add(user("colleague", domain.RoleEmployee, &f.sales, true))
	f.outsider = f.users.Add(user("outsider", domain.RoleEmployee, &f.ops, true))
	f.pending = f.users.Add(user("pending", domain.RoleEmployee, &f.sales, false))

	mem, err := cache.NewMemoryStore(128)
	require.NoError(t, err)

	f.tasks = mocks.NewMockTaskStore(f.users)
	f.tx = &mocks.MockTransactor{}
	f.enq = &recordingEnqueuer{}
	f.svc = NewTaskService(f.tasks, f.users, f.tx, cache.NewLayer(mem, testCacheC, nil), f.enq, nil).(*taskServiceImpl)
	f.svc.now = func() time.Time { return beforeDue }
	return f
}

func (f *fixture) create(t *testing.T, by *domain.User, assignees ...*domain.User) *domain.Task {
	t.Helper()
	ids := make([]uuid.UUID, len(assignees))
	for i, u := range assignees {
		ids[i] = u.ID
	}
	task, err := f.svc.Create(context.Background(), by.Caller(), CreateTaskInput{
		Title:       "Quarterly numbers",
		Deadline:    deadline,
		AssigneeIDs: ids,
	})
	require.NoError(t, err)
	return task
}

func decodePage(t *testing.T, res *ListResult) store.TaskPage {
	t.Helper()
	var page store.TaskPage
	require.NoError(t, json.Unmarshal(res.Payload, &page))
	return page
}

func TestListRecent_ReadThrough(t *testing.T) {
	f := newFixture(t)
	f.create(t, f.employee, f.employee)
	ctx := context.Background()
	calls := f.tasks.ListCalls

	first, err := f.svc.ListRecent(ctx, f.admin.Caller(), ListInput{})
	require.NoError(t, err)
	assert.Equal(t, cache.Miss, first.Outcome)

	second, err := f.svc.ListRecent(ctx, f.admin.Caller(), ListInput{})
	require.NoError(t, err)
	assert.Equal(t, cache.Hit, second.Outcome)
	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, calls+1, f.tasks.ListCalls)

	assert.Equal(t, 1, decodePage(t, second).Total)
}

func TestListRecent_Bypass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   ListInput
	}{
		{"non-default limit", ListInput{Limit: 5}},
		{"second page", ListInput{Page: 2}},
		{"filtered", ListInput{Filters: visibility.Filters{DepartmentID: &f.sales}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.svc.ListRecent(ctx, f.admin.Caller(), tc.in)
			require.NoError(t, err)
			assert.Equal(t, cache.Bypass, res.Outcome)
		})
	}
}

func TestListRecent_RejectsBadPagination(t *testing.T) {
	f := newFixture(t)
	for _, in := range []ListInput{{Page: -1}, {Limit: -3}, {Limit: MaxPageSize + 1}} {
		_, err := f.svc.ListRecent(context.Background(), f.admin.Caller(), in)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestListRecent_ScopedByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	salesTask := f.create(t, f.admin, f.colleague)
	f.create(t, f.outsider, f.outsider)

	mgr, err := f.svc.ListRecent(ctx, f.manager.Caller(), ListInput{})
	require.NoError(t, err)
	page := decodePage(t, mgr)
	require.Len(t, page.Tasks, 1)
	assert.Equal(t, salesTask.ID, page.Tasks[0].ID)

	admin, err := f.svc.ListRecent(ctx, f.admin.Caller(), ListInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, decodePage(t, admin).Total)

	emp, err := f.svc.ListRecent(ctx, f.colleague.Caller(), ListInput{})
	require.NoError(t, err)
	assert.Equal(t, 0, decodePage(t, emp).Total, "assignment alone does not put a task in recent_tasks")
}

func TestListMine_IgnoresFilters(t *testing.T) {
	f := newFixture(t)
	task := f.create(t, f.manager, f.employee)

	res, err := f.svc.ListMine(context.Background(), f.employee.Caller(), ListInput{
		Filters: visibility.Filters{DepartmentID: &f.ops},
	})
	require.NoError(t, err)
	assert.Equal(t, cache.Miss, res.Outcome)
	page := decodePage(t, res)
	require.Len(t, page.Tasks, 1)
	assert.Equal(t, task.ID, page.Tasks[0].ID)
}

func TestCreate_InvalidatesAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ListRecent(ctx, f.admin.Caller(), ListInput{})
	require.NoError(t, err)
	_, err = f.svc.ListMine(ctx, f.colleague.Caller(), ListInput{})
	require.NoError(t, err)

	task := f.create(t, f.manager, f.employee, f.colleague)
	assert.Equal(t, int64(1), task.ReadableID)
	assert.Equal(t, domain.TaskStatusActive, task.Status)
	assert.Equal(t, 1, f.tx.Calls)

	recent, err := f.svc.ListRecent(ctx, f.admin.Caller(), ListInput{})
	require.NoError(t, err)
	assert.Equal(t, cache.Miss, recent.Outcome)
	assert.Equal(t, 1, decodePage(t, recent).Total)

	mine, err := f.svc.ListMine(ctx, f.colleague.Caller(), ListInput{})
	require.NoError(t, err)
	assert.Equal(t, cache.Miss, mine.Outcome)

	assert.ElementsMatch(t, []string{f.employee.Email, f.colleague.Email}, f.enq.emailsTo())
}

func TestCreate_AssignmentRules(t *testing.T) {
	f := newFixture(t)
	lonelyManager := f.users.Add(user("lonely", domain.RoleManager, nil, true))

	tests := []struct {
		name     string
		caller   *domain.User
		assignee uuid.UUID
		wantErr  error
	}{
		{"admin assigns across departments", f.admin, f.outsider.ID, nil},
		{"manager assigns own department", f.manager, f.colleague.ID, nil},
		{"manager assigns other department", f.manager, f.outsider.ID, ErrAssignmentNotAllowed},
		{"manager without department assigns self", lonelyManager, lonelyManager.ID, nil},
		{"manager without department assigns others", lonelyManager, f.employee.ID, ErrAssignmentNotAllowed},
		{"employee assigns self", f.employee, f.employee.ID, nil},
		{"employee assigns colleague", f.employee, f.colleague.ID, ErrAssignmentNotAllowed},
		{"unapproved assignee", f.admin, f.pending.ID, domain.ErrValidation},
		{"unknown assignee", f.admin, uuid.New(), domain.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tc.caller.Caller(), CreateTaskInput{
				Title:       "Audit",
				Deadline:    deadline,
				AssigneeIDs: []uuid.UUID{tc.assignee},
			})
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
	assert.ErrorIs(t, ErrAssignmentNotAllowed, domain.ErrForbidden)
}

func TestCreate_EnqueueFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.enq.err = errors.New("redis: connection refused")

	task := f.create(t, f.employee, f.employee)
	_, err := f.tasks.GetByID(context.Background(), task.ID)
	assert.NoError(t, err)
}

func TestCreate_StoreFailureHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	f.tasks.CreateFn = func(context.Context, *domain.Task) error { return store.ErrReadableIDTaken }

	_, err := f.svc.Create(context.Background(), f.employee.Caller(), CreateTaskInput{
		Title: "Audit", Deadline: deadline, AssigneeIDs: []uuid.UUID{f.employee.ID},
	})
	assert.ErrorIs(t, err, store.ErrReadableIDTaken)
	assert.Empty(t, f.enq.jobs)
}

func TestChangeStatus(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		caller    func(f *fixture) *domain.User
		initial   string
		requested string
		want      domain.TaskStatus
		wantErr   error
	}{
		{"assignee completes before deadline", beforeDue, func(f *fixture) *domain.User { return f.employee }, "", "COMPLETED", domain.TaskStatusCompleted, nil},
		{"completion after deadline is delayed", afterDue, func(f *fixture) *domain.User { return f.employee }, "", "COMPLETED", domain.TaskStatusDelayed, nil},
		{"delayed request before deadline is completed", beforeDue, func(f *fixture) *domain.User { return f.employee }, "", "DELAYED", domain.TaskStatusCompleted, nil},
		{"active to active", beforeDue, func(f *fixture) *domain.User { return f.admin }, "", "ACTIVE", "", domain.ErrInvalidTransition},
		{"unknown status", beforeDue, func(f *fixture) *domain.User { return f.admin }, "", "ARCHIVED", "", domain.ErrInvalidStatus},
		{"employee reactivation", beforeDue, func(f *fixture) *domain.User { return f.employee }, "COMPLETED", "ACTIVE", "", domain.ErrForbidden},
		{"manager reactivation", beforeDue, func(f *fixture) *domain.User { return f.manager }, "COMPLETED", "ACTIVE", domain.TaskStatusActive, nil},
		{"unrelated employee", beforeDue, func(f *fixture) *domain.User { return f.outsider }, "", "COMPLETED", "", domain.ErrForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			task := f.create(t, f.manager, f.employee)
			if tc.initial != "" {
				_, err := f.svc.ChangeStatus(ctx, f.employee.Caller(), task.ID, tc.initial)
				require.NoError(t, err)
			}
			f.svc.now = func() time.Time { return tc.now }
			f.enq.jobs = nil

			got, err := f.svc.ChangeStatus(ctx, tc.caller(f).Caller(), task.ID, tc.requested)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Empty(t, f.enq.jobs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Status)

			stored, err := f.tasks.GetByID(ctx, task.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, stored.Status)
			require.NotEmpty(t, stored.Logs)
			assert.Contains(t, stored.Logs[len(stored.Logs)-1].Message, string(tc.want))
			assert.Equal(t, []string{f.manager.Email}, f.enq.emailsTo())
		})
	}
}

func TestChangeStatus_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ChangeStatus(context.Background(), f.admin.Caller(), uuid.New(), "COMPLETED")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestChangeStatus_DepartmentLookupOnlyForScopedKeys(t *testing.T) {
	for _, scoped := range []bool{false, true} {
		f := newFixture(t)
		ctx := context.Background()
		task := f.create(t, f.manager, f.employee)

		if scoped {
			mem, err := cache.NewMemoryStore(16)
			require.NoError(t, err)
			cfg := testCacheC
			cfg.InvalidateScopedKeys = true
			f.svc.cache = cache.NewLayer(mem, cfg, nil)
		}
		var lookups int
		f.users.GetManyFn = func(_ context.Context, ids []uuid.UUID) ([]*domain.User, error) {
			lookups++
			return []*domain.User{f.employee}, nil
		}

		_, err := f.svc.ChangeStatus(ctx, f.employee.Caller(), task.ID, "COMPLETED")
		require.NoError(t, err)
		if scoped {
			assert.Equal(t, 1, lookups)
		} else {
			assert.Zero(t, lookups)
		}
	}
}

func TestChangeAssignees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, f.employee, f.employee)
	f.enq.jobs = nil

	_, err := f.svc.ChangeAssignees(ctx, f.colleague.Caller(), task.ID, []uuid.UUID{f.colleague.ID})
	assert.ErrorIs(t, err, domain.ErrForbidden, "non-creator employee")

	_, err = f.svc.ChangeAssignees(ctx, f.manager.Caller(), task.ID, []uuid.UUID{f.outsider.ID})
	assert.ErrorIs(t, err, ErrAssignmentNotAllowed)

	_, err = f.svc.ChangeAssignees(ctx, f.manager.Caller(), task.ID, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := f.svc.ChangeAssignees(ctx, f.manager.Caller(), task.ID, []uuid.UUID{f.employee.ID, f.colleague.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{f.employee.ID, f.colleague.ID}, got.AssigneeIDs)
	assert.Equal(t, []string{f.colleague.Email}, f.enq.emailsTo(), "only newly added assignees are notified")

	stored, err := f.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, stored.Logs, 1)
	assert.Contains(t, stored.Logs[0].Message, "assignees changed")
}

func TestGet_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, f.manager, f.employee, f.colleague)

	for _, u := range []*domain.User{f.admin, f.manager, f.employee, f.colleague} {
		got, err := f.svc.Get(ctx, u.Caller(), task.ID)
		require.NoError(t, err, u.Name)
		assert.Equal(t, task.ID, got.ID)
	}

	_, err := f.svc.Get(ctx, f.outsider.Caller(), task.ID)
	assert.ErrorIs(t, err, ErrTaskNotVisible)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Get(ctx, domain.Caller{}, task.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestRequestReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.RequestReport(ctx, f.admin.Caller(), nil)
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.NotEmpty(t, res.JobID)

	res, err = f.svc.RequestReport(ctx, f.manager.Caller(), nil)
	require.NoError(t, err)
	assert.True(t, res.Queued)
	require.Len(t, f.enq.jobs, 2)
	assert.Equal(t, jobs.GenerateReport, f.enq.jobs[1].name)
	payload := f.enq.jobs[1].payload.(notify.ReportPayload)
	require.NotNil(t, payload.DepartmentID)
	assert.Equal(t, f.sales, *payload.DepartmentID)
	assert.Equal(t, f.manager.ID, *payload.RequestedBy)

	_, err = f.svc.RequestReport(ctx, f.manager.Caller(), &f.ops)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.RequestReport(ctx, f.employee.Caller(), nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	f.enq.err = errors.New("queue down")
	res, err = f.svc.RequestReport(ctx, f.admin.Caller(), &f.ops)
	require.NoError(t, err)
	assert.False(t, res.Queued)
}

func TestCreate_WithDispatcher(t *testing.T) {
	f := newFixture(t)
	q := jobs.NewMemoryQueue()
	f.svc.enqueuer = jobs.NewDispatcher(q, jobs.DefaultRetryPolicy, nil)

	f.create(t, f.manager, f.employee, f.colleague)

	counts, err := q.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[jobs.StateQueued])

	job, err := q.Claim(context.Background(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, jobs.SendEmail, job.Name)
	var p notify.EmailPayload
	require.NoError(t, job.Decode(&p))
	assert.Len(t, p.To, 1)
}
