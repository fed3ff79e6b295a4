package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// takeScript is the sliding log over a sorted set scored by hit time in ms.
// Members carry a unique suffix so simultaneous hits are all counted.
var takeScript = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = 0
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #first == 2 then
  oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// RedisStore is the shared counter store.
type RedisStore struct {
	rdb redis.Scripter
}

// NewRedisStore creates a RedisStore over an existing client.
func NewRedisStore(rdb redis.Scripter) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Take implements Store.
func (s *RedisStore) Take(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	nowMS := now.UnixMilli()
	vals, err := takeScript.Run(ctx, s.rdb, []string{key},
		nowMS,
		window.Milliseconds(),
		limit,
		strconv.FormatInt(nowMS, 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit take %s: %w", key, err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("rate limit take %s: unexpected reply of %d values", key, len(vals))
	}

	res := Result{Allowed: vals[0] == 1, Count: int(vals[1])}
	if vals[2] > 0 {
		res.Oldest = time.UnixMilli(vals[2])
	}
	return res, nil
}
