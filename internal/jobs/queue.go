package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned when an operation targets a job that does not
// exist in the expected state.
var ErrJobNotFound = errors.New("job not found")

// LostJobError is the last error of a job buried because its worker went
// away during the final attempt.
const LostJobError = "worker lost during final attempt"

// Queue persists jobs between enqueue and completion.
type Queue interface {
	// Push stores a new job as queued, claimable from job.RunAt.
	Push(ctx context.Context, job *Job) error

	// Claim atomically moves the earliest due queued job to active and
	// increments its attempt counter. It returns (nil, nil) when nothing is due.
	Claim(ctx context.Context, now time.Time) (*Job, error)

	// Complete deletes an active job.
	Complete(ctx context.Context, id string) error

	// Retry moves an active job back to queued, claimable at runAt.
	Retry(ctx context.Context, job *Job, runAt time.Time) error

	// Bury moves an active job to failed, where it is retained.
	Bury(ctx context.Context, job *Job) error

	// RecoverStale handles active jobs claimed before cutoff. Jobs with
	// attempts left go back to ready; jobs that used their last attempt are
	// moved to failed with LostJobError as the last error.
	RecoverStale(ctx context.Context, cutoff, now time.Time) (requeued, buried int, err error)

	// Failed lists up to limit failed jobs, most recent first.
	Failed(ctx context.Context, limit int) ([]*Job, error)

	// Requeue moves a failed job back to queued with its attempts reset.
	Requeue(ctx context.Context, id string, now time.Time) error

	// Purge deletes every failed job and returns how many were removed.
	Purge(ctx context.Context) (int, error)

	// Counts returns the number of jobs in each state.
	Counts(ctx context.Context) (map[State]int64, error)
}
