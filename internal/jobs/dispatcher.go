package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dexten32/Task-Management-System-sub000/internal/platform/logger"
)

// ErrClosed is returned by Enqueue after the dispatcher has been closed.
var ErrClosed = errors.New("dispatcher closed")

// Handle identifies an enqueued job.
type Handle struct {
	ID   string
	Name Name
}

// Dispatcher accepts jobs from request handlers and persists them to the
// queue. It never executes jobs itself.
type Dispatcher struct {
	queue  Queue
	policy RetryPolicy
	closed atomic.Bool
	logger *slog.Logger
	now    func() time.Time
}

// NewDispatcher creates a Dispatcher that stamps every job with policy.
func NewDispatcher(queue Queue, policy RetryPolicy, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queue:  queue,
		policy: policy,
		logger: logger.With("component", "job_dispatcher"),
		now:    time.Now,
	}
}

// Enqueue persists a job for name with payload marshalled as JSON. The error
// is for the caller to log; an enqueue failure must not fail the request that
// triggered it.
func (d *Dispatcher) Enqueue(ctx context.Context, name Name, payload any) (Handle, error) {
	if d.closed.Load() {
		return Handle{}, ErrClosed
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Handle{}, fmt.Errorf("marshal %s payload: %w", name, err)
	}

	now := d.now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		Name:      name,
		Payload:   raw,
		Policy:    d.policy,
		State:     StateQueued,
		CreatedAt: now,
		UpdatedAt: now,
		RunAt:     now,
	}
	if err := d.queue.Push(ctx, job); err != nil {
		queueErrorsTotal.WithLabelValues("push").Inc()
		return Handle{}, fmt.Errorf("enqueue %s: %w", name, err)
	}

	jobsEnqueuedTotal.WithLabelValues(string(name)).Inc()
	logger.FromContextOrDefault(ctx, d.logger).Debug("job enqueued",
		"job_id", job.ID,
		"job_name", string(name))
	return Handle{ID: job.ID, Name: name}, nil
}

// Close makes subsequent Enqueue calls fail with ErrClosed.
func (d *Dispatcher) Close() {
	d.closed.Store(true)
}
