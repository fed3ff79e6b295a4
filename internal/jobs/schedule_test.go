package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_Every(t *testing.T) {
	s := NewScheduler(NewDispatcher(NewMemoryQueue(), DefaultRetryPolicy, nil), nil)

	assert.NoError(t, s.Every("0 7 * * *", GenerateReport, func() any { return struct{}{} }))
	assert.Error(t, s.Every("every morning", GenerateReport, func() any { return nil }))

	s.Start()
	s.Stop(context.Background())
}
