// Package redis builds the shared go-redis client used by the cache, the job
// queue and the rate limiter.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dexten32/Task-Management-System-sub000/internal/config"
)

// NewClient creates a client from configuration and verifies connectivity
// with a PING bounded by the configured op timeout.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	rdb := goredis.NewClient(Options(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(cfg))
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// Options maps configuration onto go-redis options. Read and write timeouts
// follow the op timeout so a slow server fails fast.
func Options(cfg config.RedisConfig) *goredis.Options {
	return &goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  pingTimeout(cfg),
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
	}
}

func pingTimeout(cfg config.RedisConfig) time.Duration {
	if d := 4 * cfg.OpTimeout; d > time.Second {
		return d
	}
	return time.Second
}
