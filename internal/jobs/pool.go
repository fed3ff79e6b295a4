package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"

	"github.com/dexten32/Task-Management-System-sub000/internal/config"
)

// HandlerFunc executes one attempt of a job. A returned error or a panic
// counts as a failed attempt.
type HandlerFunc func(ctx context.Context, job *Job) error

// maxClaimBackoff caps the delay between claim attempts while the queue store
// is unreachable.
const maxClaimBackoff = 30 * time.Second

// Pool runs jobs from a Queue with a fixed number of concurrent slots.
type Pool struct {
	queue             Queue
	handlers          map[Name]HandlerFunc
	slots             *semaphore.Weighted
	pollInterval      time.Duration
	visibilityTimeout time.Duration
	logger            *slog.Logger
	now               func() time.Time

	mu           sync.Mutex
	started      bool
	stopClaiming context.CancelFunc
	abort        context.CancelFunc
	loops        sync.WaitGroup
	inflight     sync.WaitGroup
}

// NewPool creates a Pool with cfg.WorkerCount slots.
func NewPool(queue Queue, cfg config.JobsConfig, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = 5
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	visibility := cfg.VisibilityTimeout
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	return &Pool{
		queue:             queue,
		handlers:          make(map[Name]HandlerFunc),
		slots:             semaphore.NewWeighted(int64(workers)),
		pollInterval:      poll,
		visibilityTimeout: visibility,
		logger:            logger.With("component", "worker_pool"),
		now:               time.Now,
	}
}

// Register binds a handler to a job name. It must be called before Start.
func (p *Pool) Register(name Name, h HandlerFunc) {
	p.handlers[name] = h
}

// Start launches the claim loop and the stale job sweep. Handlers run with a
// context derived from ctx that is only cancelled when Shutdown gives up.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("worker pool already started")
	}
	p.started = true

	claimCtx, stop := context.WithCancel(ctx)
	runCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	p.stopClaiming = stop
	p.abort = abort

	p.recoverStale(claimCtx)

	p.loops.Add(2)
	go p.claimLoop(claimCtx, runCtx)
	go p.sweepLoop(claimCtx)

	p.logger.Info("worker pool started", "handlers", len(p.handlers))
	return nil
}

// Shutdown stops claiming new jobs and waits for in-flight jobs to finish.
// If ctx expires first, running handlers are cancelled and ctx's error is
// returned; their jobs stay active and are picked up by the stale sweep.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	p.logger.Info("worker pool shutting down")
	p.stopClaiming()

	done := make(chan struct{})
	go func() {
		p.loops.Wait()
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.abort()
		p.logger.Info("worker pool drained")
		return nil
	case <-ctx.Done():
		p.abort()
		p.logger.Warn("worker pool shutdown timed out, cancelling running jobs")
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}

func (p *Pool) claimLoop(ctx, runCtx context.Context) {
	defer p.loops.Done()

	for {
		if err := p.slots.Acquire(ctx, 1); err != nil {
			return
		}

		job, err := p.claim(ctx)
		if err != nil {
			p.slots.Release(1)
			return
		}
		if job == nil {
			p.slots.Release(1)
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.pollInterval):
			}
			continue
		}

		p.inflight.Add(1)
		go func() {
			defer p.inflight.Done()
			defer p.slots.Release(1)
			p.process(runCtx, job)
		}()
	}
}

// claim retries queue failures with capped exponential backoff until it
// gets an answer or ctx is cancelled.
func (p *Pool) claim(ctx context.Context) (*Job, error) {
	var job *Job
	backoff := retry.WithCappedDuration(maxClaimBackoff, retry.NewExponential(p.pollInterval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		j, err := p.queue.Claim(ctx, p.now())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			queueErrorsTotal.WithLabelValues("claim").Inc()
			p.logger.Error("failed to claim job, backing off", "error", err)
			return retry.RetryableError(err)
		}
		job = j
		return nil
	})
	return job, err
}

func (p *Pool) process(ctx context.Context, job *Job) {
	log := p.logger.With(
		"job_id", job.ID,
		"job_name", string(job.Name),
		"attempt", job.Attempts,
	)
	// Queue bookkeeping must land even if handlers are being cancelled.
	qctx := context.WithoutCancel(ctx)

	h, ok := p.handlers[job.Name]
	if !ok {
		log.Warn("no handler registered, discarding job")
		if err := p.queue.Complete(qctx, job.ID); err != nil {
			queueErrorsTotal.WithLabelValues("complete").Inc()
			log.Error("failed to discard job", "error", err)
		}
		jobsFinishedTotal.WithLabelValues(string(job.Name), "discarded").Inc()
		return
	}

	job.Policy = job.Policy.orDefault()

	jobsRunning.Inc()
	start := time.Now()
	err := run(ctx, h, job)
	jobsRunning.Dec()
	jobDurationSeconds.WithLabelValues(string(job.Name)).Observe(time.Since(start).Seconds())

	if err == nil {
		if err := p.queue.Complete(qctx, job.ID); err != nil {
			queueErrorsTotal.WithLabelValues("complete").Inc()
			log.Error("failed to delete completed job", "error", err)
		}
		jobsFinishedTotal.WithLabelValues(string(job.Name), "completed").Inc()
		log.Info("job completed")
		return
	}

	job.LastError = err.Error()

	if job.Policy.Exhausted(job.Attempts) {
		if err := p.queue.Bury(qctx, job); err != nil {
			queueErrorsTotal.WithLabelValues("bury").Inc()
			log.Error("failed to move job to failed set", "error", err)
		}
		jobsFinishedTotal.WithLabelValues(string(job.Name), "failed").Inc()
		log.Error("job failed permanently", "error", err)
		return
	}

	delay := job.Policy.Backoff(job.Attempts)
	if err := p.queue.Retry(qctx, job, p.now().Add(delay)); err != nil {
		queueErrorsTotal.WithLabelValues("retry").Inc()
		log.Error("failed to schedule retry", "error", err)
	}
	jobsFinishedTotal.WithLabelValues(string(job.Name), "retried").Inc()
	log.Warn("job attempt failed, retry scheduled", "error", err, "retry_in", delay.String())
}

func run(ctx context.Context, h HandlerFunc, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

func (p *Pool) sweepLoop(ctx context.Context) {
	defer p.loops.Done()

	interval := p.visibilityTimeout / 2
	if interval < p.pollInterval {
		interval = p.pollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.recoverStale(ctx)
		}
	}
}

func (p *Pool) recoverStale(ctx context.Context) {
	now := p.now()
	requeued, buried, err := p.queue.RecoverStale(ctx, now.Add(-p.visibilityTimeout), now)
	if err != nil {
		if ctx.Err() == nil {
			queueErrorsTotal.WithLabelValues("recover").Inc()
			p.logger.Error("failed to recover stale jobs", "error", err)
		}
		return
	}
	if requeued > 0 {
		jobsRecoveredTotal.WithLabelValues("requeued").Add(float64(requeued))
		p.logger.Info("requeued stale jobs", "count", requeued)
	}
	if buried > 0 {
		jobsRecoveredTotal.WithLabelValues("buried").Add(float64(buried))
		p.logger.Warn("stale jobs out of attempts moved to failed", "count", buried)
	}
}
