package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexten32/Task-Management-System-sub000/internal/jobs"
)

// failedQueue returns a memory queue holding one failed job.
func failedQueue(t *testing.T) (*jobs.MemoryQueue, string) {
	t.Helper()
	ctx := context.Background()
	q := jobs.NewMemoryQueue()
	now := time.Now()

	job := &jobs.Job{
		ID: uuid.NewString(), Name: jobs.SendEmail,
		Policy: jobs.DefaultRetryPolicy, RunAt: now, CreatedAt: now,
	}
	require.NoError(t, q.Push(ctx, job))
	claimed, err := q.Claim(ctx, now)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	claimed.LastError = "smtp: connection refused"
	require.NoError(t, q.Bury(ctx, claimed))
	return q, job.ID
}

func run(t *testing.T, q jobs.Queue, args ...string) (string, error) {
	t.Helper()
	closed := 0
	cmd, release := newRootCmd(func(context.Context) (jobs.Queue, func(), error) {
		return q, func() { closed++ }, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	release()
	release()
	assert.Equal(t, 1, closed, "queue connection is released once")
	return out.String(), err
}

func TestList(t *testing.T) {
	q, id := failedQueue(t)

	out, err := run(t, q, "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "send-email")
	assert.Contains(t, out, "smtp: connection refused")

	out, err = run(t, jobs.NewMemoryQueue(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no failed jobs")
}

func TestRequeue(t *testing.T) {
	q, id := failedQueue(t)

	out, err := run(t, q, "requeue", id)
	require.NoError(t, err)
	assert.Contains(t, out, "requeued "+id)

	counts, err := q.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[jobs.StateQueued])
	assert.Equal(t, int64(0), counts[jobs.StateFailed])

	_, err = run(t, q, "requeue", "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
}

func TestPurge(t *testing.T) {
	q, _ := failedQueue(t)

	_, err := run(t, q, "purge")
	assert.Error(t, err)

	out, err := run(t, q, "purge", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 1 failed jobs")
}

func TestStats(t *testing.T) {
	q, _ := failedQueue(t)

	out, err := run(t, q, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "failed  1")
	assert.Contains(t, out, "queued  0")
}

func TestOpenFailure(t *testing.T) {
	cmd, release := newRootCmd(func(context.Context) (jobs.Queue, func(), error) {
		return nil, nil, errors.New("dial tcp: connection refused")
	})
	cmd.SetArgs([]string{"stats"})
	cmd.SetOut(&bytes.Buffer{})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
	release()
}
