// Command jobctl inspects and repairs the background job queue: it lists
// failed jobs, requeues or purges them and prints per-state counts.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dexten32/Task-Management-System-sub000/internal/config"
	"github.com/dexten32/Task-Management-System-sub000/internal/jobs"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/redis"
)

func main() {
	root, release := newRootCmd(openRedisQueue)
	err := root.Execute()
	release()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openRedisQueue connects to the queue named by the server configuration.
func openRedisQueue(ctx context.Context) (jobs.Queue, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	rdb, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return jobs.NewRedisQueue(rdb), func() { _ = rdb.Close() }, nil
}
