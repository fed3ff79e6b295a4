//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexten32/Task-Management-System-sub000/internal/testdb"
)

func redisForTest(t *testing.T) *redis.Client {
	t.Helper()
	return testdb.Redis(t, false)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store := NewRedisStore(redisForTest(t))
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Set(ctx, key, []byte("payload"), time.Minute))
	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	require.NoError(t, store.Delete(ctx, key, key+":absent"))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)
}
