package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"     validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"   validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"      validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"       validate:"required"`
	Cache     CacheConfig     `mapstructure:"cache"      validate:"required"`
	Jobs      JobsConfig      `mapstructure:"jobs"       validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" validate:"required"`
	Mail      MailConfig      `mapstructure:"mail"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// RedisConfig points at the shared key-value store that backs the cache,
// the job queue and the rate limit counters.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"     validate:"required,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"       validate:"gte=0"`
	// OpTimeout bounds every individual round-trip so a slow store
	// degrades to pass-through instead of stalling requests.
	OpTimeout time.Duration `mapstructure:"op_timeout" validate:"gt=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0,lt=44640"`
	BcryptCost           int    `mapstructure:"bcrypt_cost"            validate:"gte=4,lte=31"`
}

// CacheConfig controls the read-through cache over the first page of the
// recent/my task views.
type CacheConfig struct {
	TTL       time.Duration `mapstructure:"ttl"        validate:"gt=0"`
	PageSize  int           `mapstructure:"page_size"  validate:"gt=0,lte=100"`
	OpTimeout time.Duration `mapstructure:"op_timeout" validate:"gt=0"`
	// InvalidateScopedKeys additionally drops the manager/user scoped
	// recent_tasks keys on mutation. Off by default: those keys expire by TTL.
	InvalidateScopedKeys bool `mapstructure:"invalidate_scoped_keys"`
}

// JobsConfig controls the background job dispatcher and worker pool.
type JobsConfig struct {
	WorkerCount       int           `mapstructure:"worker_count"       validate:"gt=0,lte=64"`
	MaxAttempts       int           `mapstructure:"max_attempts"       validate:"gt=0,lte=20"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"    validate:"gt=0"`
	PollInterval      time.Duration `mapstructure:"poll_interval"      validate:"gt=0"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"   validate:"gt=0"`
	// ReportSchedule is a standard cron expression for the periodic
	// generate-report job. Empty disables the schedule.
	ReportSchedule string `mapstructure:"report_schedule"`
	// RunInProcess starts the worker pool inside the API server. Disable it
	// when workers run as a separate deployment (cmd/worker).
	RunInProcess bool `mapstructure:"run_in_process"`
}

// RateLimitConfig holds the three request throttling policies.
type RateLimitConfig struct {
	Window          time.Duration `mapstructure:"window"          validate:"gt=0"`
	Unauthenticated int           `mapstructure:"unauthenticated" validate:"gt=0"`
	Authenticated   int           `mapstructure:"authenticated"   validate:"gt=0"`
	AuthRoute       int           `mapstructure:"auth_route"      validate:"gt=0"`
	// FailOpen admits requests when the counter store is unreachable.
	// When false such requests are rejected with a 500.
	FailOpen bool `mapstructure:"fail_open"`
}

// MailConfig configures outbound notification email. An empty SMTPAddr
// makes the notifier log messages instead of sending them.
type MailConfig struct {
	SMTPAddr string `mapstructure:"smtp_addr" validate:"omitempty,hostname_port"`
	From     string `mapstructure:"from"      validate:"omitempty,email"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}
