// Package main runs the notification workers as a standalone process, for
// deployments that set jobs.run_in_process=false on the API server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dexten32/Task-Management-System-sub000/internal/config"
	"github.com/dexten32/Task-Management-System-sub000/internal/jobs"
	"github.com/dexten32/Task-Management-System-sub000/internal/notify"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/logger"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/postgres"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	l, err := logger.Setup(cfg.Server)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	l = l.With("process", "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		l.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	rdb, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		l.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() { _ = rdb.Close() }()

	queue := jobs.NewRedisQueue(rdb)
	pool := jobs.NewPool(queue, cfg.Jobs, l)
	notify.NewHandlers(
		notify.NewMailer(cfg.Mail, l),
		postgres.NewPostgresTaskStore(db, l),
		postgres.NewPostgresUserStore(db, cfg.Auth.BcryptCost, l),
		l,
	).Register(pool)

	dispatcher := jobs.NewDispatcher(queue, jobs.RetryPolicy{
		MaxAttempts:    cfg.Jobs.MaxAttempts,
		InitialBackoff: cfg.Jobs.InitialBackoff,
	}, l)
	defer dispatcher.Close()

	var scheduler *jobs.Scheduler
	if spec := cfg.Jobs.ReportSchedule; spec != "" {
		scheduler = jobs.NewScheduler(dispatcher, l)
		if err := scheduler.Every(spec, jobs.GenerateReport, func() any {
			return notify.ReportPayload{RequestedAt: time.Now().UTC()}
		}); err != nil {
			l.Error("Invalid report schedule", "error", err)
			os.Exit(1)
		}
		scheduler.Start()
	}

	if err := pool.Start(ctx); err != nil {
		l.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}
	l.Info("Worker running", "workers", cfg.Jobs.WorkerCount)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Jobs.ShutdownTimeout)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		l.Warn("Worker pool did not drain", "error", err)
	}
	l.Info("Worker stopped")
}
