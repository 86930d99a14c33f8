package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/essay-review-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, "essay", nil), mr
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "capacity:level:0", 3, time.Minute))
	assert.True(t, mr.Exists("essay:capacity:level:0"))

	var free int
	require.NoError(t, repo.Get(ctx, "capacity:level:0", &free))
	assert.Equal(t, 3, free)

	require.NoError(t, repo.Delete(ctx, "capacity:level:0"))
	assert.ErrorIs(t, repo.Get(ctx, "capacity:level:0", &free), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryExpiry(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "catalog:levels", []string{"Basic"}, time.Second))
	mr.FastForward(2 * time.Second)

	var levels []string
	assert.ErrorIs(t, repo.Get(ctx, "catalog:levels", &levels), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "catalog:levels", 1, 0))
	require.NoError(t, repo.Set(ctx, "catalog:types", 1, 0))
	require.NoError(t, repo.Set(ctx, "capacity:level:1", 1, 0))

	require.NoError(t, repo.DeleteByPattern(ctx, "catalog:*"))
	assert.False(t, mr.Exists("essay:catalog:levels"))
	assert.False(t, mr.Exists("essay:catalog:types"))
	assert.True(t, mr.Exists("essay:capacity:level:1"))
}

func TestCacheRepositoryNilClientMisses(t *testing.T) {
	repo := NewCacheRepository(nil, "", nil)
	var v int
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &v), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", 1, time.Second))
	assert.NoError(t, repo.Ping(context.Background()))
}
