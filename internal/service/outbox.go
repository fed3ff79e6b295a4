package service

import (
	"context"
	"log/slog"

	"github.com/dexten32/Task-Management-System-sub000/internal/cache"
	"github.com/dexten32/Task-Management-System-sub000/internal/jobs"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/logger"
	"github.com/dexten32/Task-Management-System-sub000/internal/redact"
)

// Invalidator drops cache keys. Failures are handled by the implementation.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string)
	MutationKeys(m cache.Mutation) []string
	ScopedKeys() bool
}

// Enqueuer hands a job to the background queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, name jobs.Name, payload any) (jobs.Handle, error)
}

type pendingJob struct {
	name    jobs.Name
	payload any
}

// outbox collects the side effects of a mutation while it runs. Nothing in it
// happens until flush, which is only called after the write committed.
type outbox struct {
	keys []string
	jobs []pendingJob
}

func (o *outbox) invalidate(keys ...string) {
	o.keys = append(o.keys, keys...)
}

func (o *outbox) enqueue(name jobs.Name, payload any) {
	o.jobs = append(o.jobs, pendingJob{name: name, payload: payload})
}

// flush invalidates, then enqueues. Enqueue failures are logged only.
func (o *outbox) flush(ctx context.Context, inv Invalidator, enq Enqueuer, fallback *slog.Logger) {
	log := logger.FromContextOrDefault(ctx, fallback)

	inv.Invalidate(ctx, o.keys...)

	for _, j := range o.jobs {
		h, err := enq.Enqueue(ctx, j.name, j.payload)
		if err != nil {
			log.Error("failed to enqueue job after write",
				slog.String("job", string(j.name)),
				redact.ErrorAttr(err))
			continue
		}
		log.Debug("job enqueued", "job", string(j.name), "job_id", h.ID)
	}
}
