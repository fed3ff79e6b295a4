package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryJob struct {
	job       Job
	claimedAt time.Time
	failedAt  time.Time
}

// MemoryQueue is an in-process Queue. Jobs do not survive a restart; use it
// for tests and single-node development.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs map[string]*memoryJob
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{jobs: make(map[string]*memoryJob)}
}

// Push implements Queue.
func (q *MemoryQueue) Push(_ context.Context, job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j := *job
	j.State = StateQueued
	q.jobs[j.ID] = &memoryJob{job: j}
	return nil
}

// Claim implements Queue.
func (q *MemoryQueue) Claim(_ context.Context, now time.Time) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var next *memoryJob
	for _, m := range q.jobs {
		if m.job.State != StateQueued || m.job.RunAt.After(now) {
			continue
		}
		if next == nil || m.job.RunAt.Before(next.job.RunAt) {
			next = m
		}
	}
	if next == nil {
		return nil, nil
	}

	next.job.State = StateActive
	next.job.Attempts++
	next.job.UpdatedAt = now
	next.claimedAt = now
	out := next.job
	return &out, nil
}

// Complete implements Queue.
func (q *MemoryQueue) Complete(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(q.jobs, id)
	return nil
}

// Retry implements Queue.
func (q *MemoryQueue) Retry(_ context.Context, job *Job, runAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	m, ok := q.jobs[job.ID]
	if !ok {
		return ErrJobNotFound
	}
	m.job.State = StateQueued
	m.job.LastError = job.LastError
	m.job.RunAt = runAt
	m.job.UpdatedAt = time.Now()
	return nil
}

// Bury implements Queue.
func (q *MemoryQueue) Bury(_ context.Context, job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	m, ok := q.jobs[job.ID]
	if !ok {
		return ErrJobNotFound
	}
	now := time.Now()
	m.job.State = StateFailed
	m.job.LastError = job.LastError
	m.job.UpdatedAt = now
	m.failedAt = now
	return nil
}

// RecoverStale implements Queue.
func (q *MemoryQueue) RecoverStale(_ context.Context, cutoff, now time.Time) (requeued, buried int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, m := range q.jobs {
		if m.job.State != StateActive || !m.claimedAt.Before(cutoff) {
			continue
		}
		m.job.UpdatedAt = now
		if m.job.Policy.orDefault().Exhausted(m.job.Attempts) {
			m.job.State = StateFailed
			m.job.LastError = LostJobError
			m.failedAt = now
			buried++
			continue
		}
		m.job.State = StateQueued
		m.job.RunAt = now
		requeued++
	}
	return requeued, buried, nil
}

// Failed implements Queue.
func (q *MemoryQueue) Failed(_ context.Context, limit int) ([]*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var failed []*memoryJob
	for _, m := range q.jobs {
		if m.job.State == StateFailed {
			failed = append(failed, m)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].failedAt.After(failed[j].failedAt) })
	if limit > 0 && len(failed) > limit {
		failed = failed[:limit]
	}

	out := make([]*Job, 0, len(failed))
	for _, m := range failed {
		j := m.job
		out = append(out, &j)
	}
	return out, nil
}

// Requeue implements Queue.
func (q *MemoryQueue) Requeue(_ context.Context, id string, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	m, ok := q.jobs[id]
	if !ok || m.job.State != StateFailed {
		return ErrJobNotFound
	}
	m.job.State = StateQueued
	m.job.Attempts = 0
	m.job.RunAt = now
	m.job.UpdatedAt = now
	return nil
}

// Purge implements Queue.
func (q *MemoryQueue) Purge(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for id, m := range q.jobs {
		if m.job.State == StateFailed {
			delete(q.jobs, id)
			n++
		}
	}
	return n, nil
}

// Counts implements Queue.
func (q *MemoryQueue) Counts(_ context.Context) (map[State]int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	counts := map[State]int64{StateQueued: 0, StateActive: 0, StateFailed: 0}
	for _, m := range q.jobs {
		counts[m.job.State]++
	}
	return counts, nil
}
