package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keys:
//   - jobs:ready   (zset) score=run_at_ms,     member=job_id
//   - jobs:active  (zset) score=claimed_at_ms, member=job_id
//   - jobs:failed  (zset) score=failed_at_ms,  member=job_id
//   - jobs:data:<id> (hash) job=<json>, attempts=<n>, last_error=<set by recovery>
const (
	readyKey   = "jobs:ready"
	activeKey  = "jobs:active"
	failedKey  = "jobs:failed"
	dataPrefix = "jobs:data:"
)

func dataKey(id string) string { return dataPrefix + id }

// claimScript pops the earliest due job from ready into active and bumps its
// attempt counter. A job whose data hash is gone is dropped.
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
  return false
end
local id = ids[1]
redis.call('ZREM', KEYS[1], id)
local key = ARGV[2] .. id
local raw = redis.call('HGET', key, 'job')
if not raw then
  return false
end
redis.call('ZADD', KEYS[2], ARGV[1], id)
local attempts = redis.call('HINCRBY', key, 'attempts', 1)
return {raw, attempts}
`)

// recoverScript moves active jobs claimed before the cutoff back to ready,
// or to failed when the attempt counter has reached the job's max_attempts
// (ARGV[4] when the stored policy has none). The job JSON is only read; the
// lost-worker error goes in the last_error hash field.
var recoverScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local requeued, buried = 0, 0
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  local key = ARGV[3] .. id
  local raw = redis.call('HGET', key, 'job')
  if raw then
    local max = tonumber(ARGV[4])
    local ok, job = pcall(cjson.decode, raw)
    if ok and type(job.policy) == 'table' then
      local m = tonumber(job.policy.max_attempts)
      if m and m > 0 then
        max = m
      end
    end
    local attempts = tonumber(redis.call('HGET', key, 'attempts')) or 0
    if attempts >= max then
      redis.call('HSET', key, 'last_error', ARGV[5])
      redis.call('ZADD', KEYS[3], ARGV[2], id)
      buried = buried + 1
    else
      redis.call('ZADD', KEYS[2], ARGV[2], id)
      requeued = requeued + 1
    end
  end
end
return {requeued, buried}
`)

// RedisQueue is a durable Queue on Redis sorted sets.
type RedisQueue struct {
	rdb redis.UniversalClient
}

// NewRedisQueue creates a RedisQueue over an existing client.
func NewRedisQueue(rdb redis.UniversalClient) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func ms(t time.Time) float64 { return float64(t.UnixMilli()) }

// Push implements Queue.
func (q *RedisQueue) Push(ctx context.Context, job *Job) error {
	job.State = StateQueued
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, dataKey(job.ID), map[string]any{
		"job":      string(raw),
		"attempts": job.Attempts,
	})
	pipe.ZAdd(ctx, readyKey, redis.Z{Score: ms(job.RunAt), Member: job.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push job %s: %w", job.ID, err)
	}
	return nil
}

// Claim implements Queue.
func (q *RedisQueue) Claim(ctx context.Context, now time.Time) (*Job, error) {
	res, err := claimScript.Run(ctx, q.rdb,
		[]string{readyKey, activeKey},
		strconv.FormatInt(now.UnixMilli(), 10), dataPrefix,
	).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("claim job: unexpected reply of %d elements", len(res))
	}

	raw, _ := res[0].(string)
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("decode claimed job: %w", err)
	}
	attempts, _ := res[1].(int64)
	job.Attempts = int(attempts)
	job.State = StateActive
	job.UpdatedAt = now
	return &job, nil
}

// Complete implements Queue.
func (q *RedisQueue) Complete(ctx context.Context, id string) error {
	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, activeKey, id)
	pipe.Del(ctx, dataKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	return nil
}

// Retry implements Queue.
func (q *RedisQueue) Retry(ctx context.Context, job *Job, runAt time.Time) error {
	return q.move(ctx, job, StateQueued, readyKey, ms(runAt), runAt)
}

// Bury implements Queue.
func (q *RedisQueue) Bury(ctx context.Context, job *Job) error {
	now := time.Now()
	return q.move(ctx, job, StateFailed, failedKey, ms(now), job.RunAt)
}

func (q *RedisQueue) move(ctx context.Context, job *Job, state State, to string, score float64, runAt time.Time) error {
	j := *job
	j.State = state
	j.RunAt = runAt
	j.UpdatedAt = time.Now()
	raw, err := json.Marshal(&j)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, activeKey, job.ID)
	pipe.HSet(ctx, dataKey(job.ID), "job", string(raw))
	pipe.ZAdd(ctx, to, redis.Z{Score: score, Member: job.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("move job %s to %s: %w", job.ID, state, err)
	}
	return nil
}

// RecoverStale implements Queue.
func (q *RedisQueue) RecoverStale(ctx context.Context, cutoff, now time.Time) (requeued, buried int, err error) {
	res, err := recoverScript.Run(ctx, q.rdb,
		[]string{activeKey, readyKey, failedKey},
		strconv.FormatInt(cutoff.UnixMilli(), 10),
		strconv.FormatInt(now.UnixMilli(), 10),
		dataPrefix,
		strconv.Itoa(DefaultRetryPolicy.MaxAttempts),
		LostJobError,
	).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("recover stale jobs: unexpected reply of %d elements", len(res))
	}
	return int(res[0]), int(res[1]), nil
}

// Failed implements Queue.
func (q *RedisQueue) Failed(ctx context.Context, limit int) ([]*Job, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := q.rdb.ZRevRange(ctx, failedKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list failed jobs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := q.rdb.Pipeline()
	cmds := make([]*redis.SliceCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, dataKey(id), "job", "attempts", "last_error")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load failed jobs: %w", err)
	}

	out := make([]*Job, 0, len(ids))
	for _, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) != 3 {
			continue
		}
		raw, ok := vals[0].(string)
		if !ok {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		if s, ok := vals[1].(string); ok {
			job.Attempts, _ = strconv.Atoi(s)
		}
		if s, ok := vals[2].(string); ok && s != "" {
			job.LastError = s
		}
		job.State = StateFailed
		out = append(out, &job)
	}
	return out, nil
}

// Requeue implements Queue.
func (q *RedisQueue) Requeue(ctx context.Context, id string, now time.Time) error {
	removed, err := q.rdb.ZRem(ctx, failedKey, id).Result()
	if err != nil {
		return fmt.Errorf("requeue job %s: %w", id, err)
	}
	if removed == 0 {
		return ErrJobNotFound
	}

	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, dataKey(id), "attempts", 0)
	pipe.HDel(ctx, dataKey(id), "last_error")
	pipe.ZAdd(ctx, readyKey, redis.Z{Score: ms(now), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("requeue job %s: %w", id, err)
	}
	return nil
}

// Purge implements Queue.
func (q *RedisQueue) Purge(ctx context.Context) (int, error) {
	ids, err := q.rdb.ZRange(ctx, failedKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("purge failed jobs: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, dataKey(id))
	}
	pipe := q.rdb.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, failedKey, toMembers(ids)...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("purge failed jobs: %w", err)
	}
	return len(ids), nil
}

// Counts implements Queue.
func (q *RedisQueue) Counts(ctx context.Context) (map[State]int64, error) {
	pipe := q.rdb.Pipeline()
	ready := pipe.ZCard(ctx, readyKey)
	active := pipe.ZCard(ctx, activeKey)
	failed := pipe.ZCard(ctx, failedKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	return map[State]int64{
		StateQueued: ready.Val(),
		StateActive: active.Val(),
		StateFailed: failed.Val(),
	}, nil
}

func toMembers(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
