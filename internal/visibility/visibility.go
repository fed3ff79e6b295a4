// Package visibility turns a caller identity, a view name and optional filters
// into a storage-agnostic task predicate plus the scope fragment used to build
// cache keys. It never touches storage.
package visibility

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/domain"
)

// View names a task listing. Views are never conflated.
type View string

// Known views.
const (
	ViewRecent View = "recent_tasks"
	ViewMine   View = "my_tasks"
)

// ScopeAdmin is the recent_tasks scope fragment shared by all admins.
const ScopeAdmin = "ADMIN"

// ManagerScope is the recent_tasks scope fragment of managers in a department.
func ManagerScope(departmentID uuid.UUID) string {
	return "MANAGER:" + departmentID.String()
}

// UserScope is the recent_tasks scope fragment of a caller limited to tasks
// they created.
func UserScope(userID uuid.UUID) string {
	return "USER:" + userID.String()
}

// ClauseKind identifies what a Clause compares against.
type ClauseKind int

const (
	// AssignedBy matches tasks created by ID.
	AssignedBy ClauseKind = iota + 1
	// AssigneeIs matches tasks where ID is one of the assignees.
	AssigneeIs
	// AssigneeDepartment matches tasks where any assignee belongs to department ID.
	AssigneeDepartment
)

func (k ClauseKind) String() string {
	switch k {
	case AssignedBy:
		return "assigned_by"
	case AssigneeIs:
		return "assignee"
	case AssigneeDepartment:
		return "assignee_department"
	}
	return "unknown"
}

// Clause is a single comparison.
type Clause struct {
	Kind ClauseKind
	ID   uuid.UUID
}

// Filters narrow a listing. Nil fields are absent.
type Filters struct {
	AssigneeID   *uuid.UUID
	DepartmentID *uuid.UUID
	AssignedByID *uuid.UUID
}

// Empty reports whether no filter is set.
func (f Filters) Empty() bool {
	return f.AssigneeID == nil && f.DepartmentID == nil && f.AssignedByID == nil
}

// Predicate selects tasks. Scope clauses are OR'ed together; filter clauses
// are AND'ed with the scope and with each other. An Unrestricted predicate
// has no scope.
type Predicate struct {
	Unrestricted bool
	Scope        []Clause
	Filters      []Clause
}

// TaskFacts is what Matches needs to know about a task.
type TaskFacts struct {
	CreatorID             uuid.UUID
	AssigneeIDs           []uuid.UUID
	AssigneeDepartmentIDs []uuid.UUID
}

// Matches evaluates the predicate in memory.
func (p Predicate) Matches(t TaskFacts) bool {
	if !p.Unrestricted {
		inScope := false
		for _, c := range p.Scope {
			if c.matches(t) {
				inScope = true
				break
			}
		}
		if !inScope {
			return false
		}
	}
	for _, c := range p.Filters {
		if !c.matches(t) {
			return false
		}
	}
	return true
}

func (c Clause) matches(t TaskFacts) bool {
	switch c.Kind {
	case AssignedBy:
		return t.CreatorID == c.ID
	case AssigneeIs:
		return containsID(t.AssigneeIDs, c.ID)
	case AssigneeDepartment:
		return containsID(t.AssigneeDepartmentIDs, c.ID)
	}
	return false
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Resolution is the output of Resolve.
type Resolution struct {
	View      View
	Scope     string
	Predicate Predicate
	// Filtered is true when any caller-supplied filter was applied. Cache keys
	// do not encode filters, so filtered resolutions must not be cached.
	Filtered bool
}

// Resolve computes the predicate for caller on view.
//
// recent_tasks, first matching rule wins:
//   - ADMIN: unrestricted, all filters AND'ed.
//   - MANAGER with a department: created by the caller OR any assignee in the
//     caller's department. The department filter is ignored when an assignee
//     filter is present.
//   - anyone else: created by the caller; filters only narrow.
//
// my_tasks: the caller is an assignee, for every role.
func Resolve(caller *domain.Caller, view View, filters Filters) (Resolution, error) {
	if caller == nil || !caller.Authenticated() {
		return Resolution{}, fmt.Errorf("%w: caller id missing", domain.ErrUnauthenticated)
	}

	switch view {
	case ViewMine:
		return Resolution{
			View:      view,
			Scope:     caller.ID.String(),
			Predicate: Predicate{Scope: []Clause{{Kind: AssigneeIs, ID: caller.ID}}},
		}, nil
	case ViewRecent:
		return resolveRecent(caller, filters), nil
	}
	return Resolution{}, domain.NewValidationError("view", fmt.Sprintf("unknown view %q", view), nil)
}

func resolveRecent(caller *domain.Caller, f Filters) Resolution {
	res := Resolution{View: ViewRecent}

	switch {
	case caller.Role == domain.RoleAdmin:
		res.Scope = ScopeAdmin
		res.Predicate.Unrestricted = true
		res.Predicate.Filters = filterClauses(f, true)

	case caller.Role == domain.RoleManager && caller.HasDepartment():
		res.Scope = ManagerScope(*caller.DepartmentID)
		res.Predicate.Scope = []Clause{
			{Kind: AssignedBy, ID: caller.ID},
			{Kind: AssigneeDepartment, ID: *caller.DepartmentID},
		}
		res.Predicate.Filters = filterClauses(f, f.AssigneeID == nil)

	default:
		res.Scope = UserScope(caller.ID)
		res.Predicate.Scope = []Clause{{Kind: AssignedBy, ID: caller.ID}}
		res.Predicate.Filters = filterClauses(f, true)
	}

	res.Filtered = !f.Empty()
	return res
}

func filterClauses(f Filters, withDepartment bool) []Clause {
	var out []Clause
	if f.AssigneeID != nil {
		out = append(out, Clause{Kind: AssigneeIs, ID: *f.AssigneeID})
	}
	if withDepartment && f.DepartmentID != nil {
		out = append(out, Clause{Kind: AssigneeDepartment, ID: *f.DepartmentID})
	}
	if f.AssignedByID != nil {
		out = append(out, Clause{Kind: AssignedBy, ID: *f.AssignedByID})
	}
	return out
}
