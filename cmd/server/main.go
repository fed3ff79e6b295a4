// Package main implements the task management API server. It serves the
// HTTP API and, unless jobs.run_in_process is disabled, also runs the
// background notification workers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dexten32/Task-Management-System-sub000/internal/config"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/logger"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/postgres"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a migration command and exit ("+strings.Join(postgres.MigrationCommands, ", ")+")")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}
	l.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"jobs_in_process", cfg.Jobs.RunInProcess)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrateCmd != "" {
		if err := runMigrations(ctx, cfg, *migrateCmd, l); err != nil {
			l.Error("Migration failed", "command", *migrateCmd, "error", err)
			os.Exit(1)
		}
		return
	}

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		l.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		l.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func runMigrations(ctx context.Context, cfg *config.Config, command string, l *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := postgres.RunMigrations(ctx, db, command, l); err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	l.Info("Migration command completed", "command", command)
	return nil
}
