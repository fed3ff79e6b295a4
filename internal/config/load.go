package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. TMS_SERVER_PORT.
const EnvPrefix = "TMS"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.op_timeout", 250*time.Millisecond)

	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("cache.ttl", 600*time.Second)
	v.SetDefault("cache.page_size", 10)
	v.SetDefault("cache.op_timeout", 200*time.Millisecond)
	v.SetDefault("cache.invalidate_scoped_keys", false)

	v.SetDefault("jobs.worker_count", 5)
	v.SetDefault("jobs.max_attempts", 3)
	v.SetDefault("jobs.initial_backoff", 2*time.Second)
	v.SetDefault("jobs.poll_interval", 500*time.Millisecond)
	v.SetDefault("jobs.visibility_timeout", 5*time.Minute)
	v.SetDefault("jobs.shutdown_timeout", 30*time.Second)
	v.SetDefault("jobs.report_schedule", "0 7 * * *")
	v.SetDefault("jobs.run_in_process", true)

	v.SetDefault("rate_limit.window", 15*time.Minute)
	v.SetDefault("rate_limit.unauthenticated", 1000)
	v.SetDefault("rate_limit.authenticated", 1500)
	v.SetDefault("rate_limit.auth_route", 10)
	v.SetDefault("rate_limit.fail_open", true)
}

// bindEnvs registers keys that have no default so AutomaticEnv can see them
// during Unmarshal.
func bindEnvs(v *viper.Viper) {
	for _, key := range []string{
		"database.url",
		"redis.password",
		"auth.jwt_secret",
		"mail.smtp_addr",
		"mail.from",
		"mail.username",
		"mail.password",
	} {
		_ = v.BindEnv(key)
	}
}
