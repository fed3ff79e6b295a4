package postgres

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/visibility"
)

// args collects positional query arguments.
type args struct {
	values []any
}

func (a *args) add(v any) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

// renderPredicate turns a visibility predicate into a boolean SQL expression
// over the tasks table aliased as t.
func renderPredicate(p visibility.Predicate, a *args) string {
	var parts []string

	if !p.Unrestricted {
		if len(p.Scope) == 0 {
			return "FALSE"
		}
		scope := make([]string, 0, len(p.Scope))
		for _, c := range p.Scope {
			scope = append(scope, renderClause(c, a))
		}
		parts = append(parts, "("+strings.Join(scope, " OR ")+")")
	}

	for _, c := range p.Filters {
		parts = append(parts, renderClause(c, a))
	}

	if len(parts) == 0 {
		return "TRUE"
	}
	return strings.Join(parts, " AND ")
}

func renderClause(c visibility.Clause, a *args) string {
	switch c.Kind {
	case visibility.AssignedBy:
		return "t.created_by = " + a.add(c.ID)
	case visibility.AssigneeIs:
		return "EXISTS (SELECT 1 FROM task_assignees ta WHERE ta.task_id = t.id AND ta.user_id = " + a.add(c.ID) + ")"
	case visibility.AssigneeDepartment:
		return "EXISTS (SELECT 1 FROM task_assignees ta JOIN users u ON u.id = ta.user_id " +
			"WHERE ta.task_id = t.id AND u.department_id = " + a.add(c.ID) + ")"
	}
	return "FALSE"
}

// inList renders "($n, $n+1, ...)" for ids.
func inList(ids []uuid.UUID, a *args) string {
	ph := make([]string, len(ids))
	for i, id := range ids {
		ph[i] = a.add(id)
	}
	return "(" + strings.Join(ph, ", ") + ")"
}
