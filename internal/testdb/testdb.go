//go:build integration

// Package testdb connects integration tests to real PostgreSQL and Redis
// instances. Tests are skipped when the corresponding environment variable
// is unset, so `go test -tags=integration ./...` is safe on a laptop.
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dexten32/Task-Management-System-sub000/internal/platform/postgres"
)

const (
	// EnvDatabaseURL names the PostgreSQL database used by integration tests.
	EnvDatabaseURL = "TMS_TEST_DATABASE_URL"
	// EnvRedisAddr names the Redis server used by integration tests.
	EnvRedisAddr = "TMS_REDIS_ADDR"

	// RedisDB keeps test keys away from a developer's default database.
	RedisDB = 15
)

// Open connects to the test database and applies every migration. The
// connection is closed when the test ends.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv(EnvDatabaseURL)
	if url == "" {
		t.Skipf("%s not set", EnvDatabaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Open(ctx, url)
	require.NoError(t, err, "connect to test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, postgres.Migrate(ctx, db, nil), "migrate test database")
	return db
}

// WithTx runs fn inside a transaction that is always rolled back, so tests
// sharing a database do not see each other's rows.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()
	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err, "begin test transaction")
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Errorf("rollback test transaction: %v", err)
		}
	}()
	fn(t, tx)
}

// Redis returns a client on the test Redis database. When flush is true the
// database is emptied first.
func Redis(t *testing.T, flush bool) *redis.Client {
	t.Helper()
	addr := os.Getenv(EnvRedisAddr)
	if addr == "" {
		t.Skipf("%s not set", EnvRedisAddr)
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: RedisDB})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err(), "ping test redis")
	if flush {
		require.NoError(t, rdb.FlushDB(ctx).Err())
	}
	return rdb
}
