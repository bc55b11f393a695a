package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sk-governance-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "stats:term:t1", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "stats:term:t1", map[string]int{"total": 10}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "stats:term:t1*"))
}

func TestCacheRepositoryWrapsBackendErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	repo := NewCacheRepository(client, nil)

	var dest map[string]int
	err := repo.Get(context.Background(), "stats:term:t1", &dest)
	require.Error(t, err)
	assert.False(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.Contains(t, err.Error(), "redis get stats:term:t1")

	err = repo.DeleteByPattern(context.Background(), "stats:term:t1*")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis scan")
}

func TestNamespacedKey(t *testing.T) {
	assert.Equal(t, "skgov:stats:term:t1", namespaced("stats:term:t1"))
}
