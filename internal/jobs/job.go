// Package jobs dispatches background work (notification email, reports) to a
// durable queue and drains it with a bounded worker pool.
//
// Delivery is at-least-once: a job whose worker dies mid-run is requeued by
// the stale sweep and may run again. Handlers must tolerate that.
package jobs

import (
	"encoding/json"
	"time"
)

// Name selects the handler for a job.
type Name string

// Known job names.
const (
	SendEmail      Name = "send-email"
	GenerateReport Name = "generate-report"
)

// State is where a job sits in the queue.
type State string

// Job states. Completed jobs are deleted rather than kept in a state.
const (
	StateQueued State = "queued"
	StateActive State = "active"
	StateFailed State = "failed"
)

// RetryPolicy bounds attempts and spaces them with doubling backoff.
type RetryPolicy struct {
	MaxAttempts    int           `json:"max_attempts"`
	InitialBackoff time.Duration `json:"initial_backoff"`
}

// DefaultRetryPolicy is three attempts, retried after 2s then 4s.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, InitialBackoff: 2 * time.Second}

// Backoff returns the delay before the next attempt, given how many attempts
// have already been made (1-based).
func (p RetryPolicy) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := p.InitialBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= time.Hour {
			return time.Hour
		}
	}
	return d
}

// orDefault substitutes DefaultRetryPolicy for a policy without attempts.
func (p RetryPolicy) orDefault() RetryPolicy {
	if p.MaxAttempts <= 0 {
		return DefaultRetryPolicy
	}
	return p
}

// Exhausted reports whether no attempts remain.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

// Job is a unit of background work.
type Job struct {
	ID        string          `json:"id"`
	Name      Name            `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Policy    RetryPolicy     `json:"policy"`
	State     State           `json:"state"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	// RunAt is when the job becomes claimable.
	RunAt time.Time `json:"run_at"`
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}
