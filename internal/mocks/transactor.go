package mocks

import (
	"context"

	"github.com/dexten32/Task-Management-System-sub000/internal/store"
)

// MockTransactor runs functions with a nil transaction. The in-memory stores
// ignore the transaction passed to WithTx, so nothing is rolled back.
type MockTransactor struct {
	Err   error
	Calls int
}

// RunInTransaction implements store.Transactor.
func (m *MockTransactor) RunInTransaction(ctx context.Context, fn store.TxFn) error {
	m.Calls++
	if m.Err != nil {
		return m.Err
	}
	return fn(ctx, nil)
}
