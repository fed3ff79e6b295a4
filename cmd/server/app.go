package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dexten32/Task-Management-System-sub000/internal/cache"
	"github.com/dexten32/Task-Management-System-sub000/internal/config"
	"github.com/dexten32/Task-Management-System-sub000/internal/jobs"
	"github.com/dexten32/Task-Management-System-sub000/internal/notify"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/postgres"
	"github.com/dexten32/Task-Management-System-sub000/internal/platform/redis"
	"github.com/dexten32/Task-Management-System-sub000/internal/ratelimit"
	"github.com/dexten32/Task-Management-System-sub000/internal/service"
	"github.com/dexten32/Task-Management-System-sub000/internal/service/auth"
	"github.com/dexten32/Task-Management-System-sub000/internal/store"
)

// application holds the shared dependencies of the server process so they
// can be wired once and released together on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	db  *sql.DB
	rdb *goredis.Client

	userStore       store.UserStore
	taskStore       store.TaskStore
	departmentStore store.DepartmentStore

	jwtService  auth.JWTService
	cache       *cache.Layer
	limiter     *ratelimit.Limiter
	policies    ratelimit.Policies
	dispatcher  *jobs.Dispatcher
	pool        *jobs.Pool
	scheduler   *jobs.Scheduler
	taskService service.TaskService
	userService service.UserService
}

// newApplication connects to PostgreSQL and Redis, applies migrations and
// wires every service. On error, anything already opened is closed.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{config: cfg, logger: logger}
	ready := false
	defer func() {
		if !ready {
			app.cleanup()
		}
	}()

	var err error
	app.db, err = postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connection established")

	if err = postgres.Migrate(ctx, app.db, logger); err != nil {
		return nil, err
	}

	app.rdb, err = redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Redis connection established", "addr", cfg.Redis.Addr)

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.userStore = postgres.NewPostgresUserStore(app.db, cfg.Auth.BcryptCost, logger)
	app.taskStore = postgres.NewPostgresTaskStore(app.db, logger)
	app.departmentStore = postgres.NewPostgresDepartmentStore(app.db)

	app.cache = cache.NewLayer(cache.NewRedisStore(app.rdb), cfg.Cache, logger)
	app.limiter = ratelimit.NewLimiter(ratelimit.NewRedisStore(app.rdb), cfg.RateLimit.FailOpen, logger)
	app.policies = ratelimit.PoliciesFromConfig(cfg.RateLimit)

	queue := jobs.NewRedisQueue(app.rdb)
	app.dispatcher = jobs.NewDispatcher(queue, retryPolicy(cfg.Jobs), logger)

	if cfg.Jobs.RunInProcess {
		app.pool = jobs.NewPool(queue, cfg.Jobs, logger)
		handlers := notify.NewHandlers(notify.NewMailer(cfg.Mail, logger), app.taskStore, app.userStore, logger)
		handlers.Register(app.pool)

		app.scheduler, err = newReportScheduler(app.dispatcher, cfg.Jobs.ReportSchedule, logger)
		if err != nil {
			return nil, err
		}
	}

	app.taskService = service.NewTaskService(
		app.taskStore,
		app.userStore,
		store.DBTransactor{DB: app.db},
		app.cache,
		app.dispatcher,
		logger,
	)
	app.userService = service.NewUserService(
		app.userStore,
		app.departmentStore,
		auth.NewBcryptVerifier(),
		app.jwtService,
		logger,
	)

	ready = true
	logger.Info("Application initialized successfully")
	return app, nil
}

func retryPolicy(cfg config.JobsConfig) jobs.RetryPolicy {
	return jobs.RetryPolicy{MaxAttempts: cfg.MaxAttempts, InitialBackoff: cfg.InitialBackoff}
}

// newReportScheduler registers the periodic all-department report. A nil
// scheduler is returned when no schedule is configured.
func newReportScheduler(d *jobs.Dispatcher, spec string, logger *slog.Logger) (*jobs.Scheduler, error) {
	if spec == "" {
		return nil, nil
	}
	s := jobs.NewScheduler(d, logger)
	err := s.Every(spec, jobs.GenerateReport, func() any {
		return notify.ReportPayload{RequestedAt: time.Now().UTC()}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Run starts the background workers and the HTTP server and blocks until
// ctx is cancelled or the server fails.
func (app *application) Run(ctx context.Context) error {
	return app.serve(ctx, app.setupRouter())
}

// cleanup releases connections. Workers are stopped in serve.
func (app *application) cleanup() {
	if app.dispatcher != nil {
		app.dispatcher.Close()
	}
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error("Error closing redis connection", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}
}
