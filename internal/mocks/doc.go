// Package mocks provides shared test doubles for the store and auth
// interfaces.
//
// The in-memory stores behave like the PostgreSQL implementations closely
// enough for service and handler tests: task listings honour visibility
// predicates, order newest first and page with offset/limit. Each method can
// be overridden through its Fn field to inject failures.
//
// Usage:
//
//	users := mocks.NewMockUserStore()
//	tasks := mocks.NewMockTaskStore(users)
//	tasks.UpdateStatusFn = func(context.Context, uuid.UUID, domain.TaskStatus, domain.TaskLog) error {
//	    return errors.New("connection reset")
//	}
package mocks
