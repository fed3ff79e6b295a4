package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dexten32/Task-Management-System-sub000/internal/visibility"
)

func TestRenderPredicate(t *testing.T) {
	user := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	dept := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	tests := []struct {
		name     string
		pred     visibility.Predicate
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "unrestricted without filters",
			pred:    visibility.Predicate{Unrestricted: true},
			wantSQL: "TRUE",
		},
		{
			name:    "restricted with empty scope matches nothing",
			pred:    visibility.Predicate{},
			wantSQL: "FALSE",
		},
		{
			name: "scope clauses are or'ed",
			pred: visibility.Predicate{Scope: []visibility.Clause{
				{Kind: visibility.AssignedBy, ID: user},
				{Kind: visibility.AssigneeDepartment, ID: dept},
			}},
			wantSQL: "(t.created_by = $1 OR EXISTS (SELECT 1 FROM task_assignees ta JOIN users u ON u.id = ta.user_id " +
				"WHERE ta.task_id = t.id AND u.department_id = $2))",
			wantArgs: []any{user, dept},
		},
		{
			name: "filters are and'ed onto the scope",
			pred: visibility.Predicate{
				Scope:   []visibility.Clause{{Kind: visibility.AssignedBy, ID: user}},
				Filters: []visibility.Clause{{Kind: visibility.AssigneeIs, ID: user}},
			},
			wantSQL: "(t.created_by = $1) AND " +
				"EXISTS (SELECT 1 FROM task_assignees ta WHERE ta.task_id = t.id AND ta.user_id = $2)",
			wantArgs: []any{user, user},
		},
		{
			name: "unrestricted with filters",
			pred: visibility.Predicate{
				Unrestricted: true,
				Filters:      []visibility.Clause{{Kind: visibility.AssignedBy, ID: user}},
			},
			wantSQL:  "t.created_by = $1",
			wantArgs: []any{user},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &args{}
			assert.Equal(t, tt.wantSQL, renderPredicate(tt.pred, a))
			assert.Equal(t, tt.wantArgs, a.values)
		})
	}
}

func TestInList(t *testing.T) {
	a := &args{values: []any{"existing"}}
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	assert.Equal(t, "($2, $3)", inList(ids, a))
	assert.Len(t, a.values, 3)
}
