package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCacheRepo struct {
	err error
}

func (r failingCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return r.err
}

func (r failingCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.err
}

func (r failingCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	return r.err
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	cache := NewCacheService(repo, metrics, 0, nil, true)
	ctx := context.Background()

	var dest map[string]int
	hit, err := cache.Get(ctx, TermStatisticsKey("t1"), &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, TermStatisticsKey("t1"), map[string]int{"filled": 3}, 0))
	hit, err = cache.Get(ctx, TermStatisticsKey("t1"), &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, dest["filled"])

	require.NoError(t, cache.Invalidate(ctx, TermStatisticsPattern("t1")))
	assert.Equal(t, []string{"stats:term:t1*"}, repo.deleted)
	assert.Empty(t, repo.values)

	snap := metrics.Snapshot()
	assert.EqualValues(t, 1, snap.CacheHits)
	assert.EqualValues(t, 1, snap.CacheMisses)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, false)

	assert.False(t, cache.Enabled())
	require.NoError(t, cache.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.values)

	var nilCache *CacheService
	hit, err := nilCache.Get(context.Background(), "k", new(int))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, nilCache.Invalidate(context.Background(), "k*"))
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	backend := errors.New("redis unavailable")
	cache := NewCacheService(failingCacheRepo{err: backend}, nil, time.Minute, nil, true)

	hit, err := cache.Get(context.Background(), "k", new(int))
	assert.False(t, hit)
	assert.ErrorIs(t, err, backend)
	assert.ErrorIs(t, cache.Set(context.Background(), "k", 1, 0), backend)
	assert.ErrorIs(t, cache.Invalidate(context.Background(), "k*"), backend)
}
