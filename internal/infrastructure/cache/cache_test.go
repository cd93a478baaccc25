package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rackgrid/rackgrid/internal/application/subscription/dto"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisStatusCache_RoundTrip(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewRedisStatusCache(client, time.Minute, logger.NewNop())
	ctx := context.Background()

	got, version, err := c.Get(ctx, "facility-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, version)

	plan := "PREMIUM"
	end := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	status := &dto.StatusDTO{
		FacilityID:    "facility-1",
		Plan:          &plan,
		EndDate:       &end,
		IsActive:      true,
		IsValid:       true,
		DaysRemaining: 30,
		MaxUsers:      15,
		MaxRacks:      20,
		Tiers:         []dto.TierDTO{{Plan: "BASIC", Days: 10}},
	}
	stored, err := c.Set(ctx, "facility-1", version, status)
	require.NoError(t, err)
	assert.True(t, stored)

	ttl := mr.TTL(statusKeyPrefix + "facility-1")
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.Less(t, ttl, time.Minute+time.Minute/5)

	got, _, err = c.Get(ctx, "facility-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "PREMIUM", *got.Plan)
	assert.True(t, got.EndDate.Equal(end))
	assert.Equal(t, 30, got.DaysRemaining)
	require.Len(t, got.Tiers, 1)
	assert.Equal(t, "BASIC", got.Tiers[0].Plan)

	require.NoError(t, c.Invalidate(ctx, "facility-1"))
	got, version, err = c.Get(ctx, "facility-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.EqualValues(t, 1, version)
}

func TestRedisStatusCache_SetAfterInvalidateIsDropped(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewRedisStatusCache(client, time.Minute, logger.NewNop())
	ctx := context.Background()

	_, version, err := c.Get(ctx, "facility-1")
	require.NoError(t, err)

	// A write lands while the status is being loaded.
	require.NoError(t, c.Invalidate(ctx, "facility-1"))
	assert.Greater(t, mr.TTL(versionKeyPrefix+"facility-1"), time.Duration(0))

	stored, err := c.Set(ctx, "facility-1", version, dto.EmptyStatus("facility-1"))
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, mr.Exists(statusKeyPrefix+"facility-1"))

	_, version, err = c.Get(ctx, "facility-1")
	require.NoError(t, err)
	stored, err = c.Set(ctx, "facility-1", version, dto.EmptyStatus("facility-1"))
	require.NoError(t, err)
	assert.True(t, stored)
	assert.True(t, mr.Exists(statusKeyPrefix+"facility-1"))
}

func TestRedisStatusCache_InvalidVersion(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewRedisStatusCache(client, time.Minute, logger.NewNop())
	require.NoError(t, mr.Set(versionKeyPrefix+"facility-1", "not a number"))

	_, _, err := c.Get(context.Background(), "facility-1")
	assert.Error(t, err)
}

func TestRedisStatusCache_Expires(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewRedisStatusCache(client, time.Minute, logger.NewNop())
	ctx := context.Background()

	stored, err := c.Set(ctx, "facility-1", 0, dto.EmptyStatus("facility-1"))
	require.NoError(t, err)
	require.True(t, stored)
	mr.FastForward(2 * time.Minute)

	got, _, err := c.Get(ctx, "facility-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStatusCache_DropsUndecodableEntry(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewRedisStatusCache(client, 0, logger.NewNop())
	require.NoError(t, mr.Set(statusKeyPrefix+"facility-1", "{not json"))

	got, _, err := c.Get(context.Background(), "facility-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists(statusKeyPrefix+"facility-1"))
}

func TestRedisStatusCache_ConnectionError(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewRedisStatusCache(client, time.Minute, logger.NewNop())
	mr.Close()

	_, _, err := c.Get(context.Background(), "facility-1")
	assert.Error(t, err)
}

func TestRedisEventDeduplicator(t *testing.T) {
	mr, client := setupTestRedis(t)
	d := NewRedisEventDeduplicator(client, time.Hour)
	ctx := context.Background()

	seen, err := d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.MarkSeen(ctx, "evt_1"))
	seen, err = d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	// A second mark keeps the first expiry.
	mr.FastForward(30 * time.Minute)
	require.NoError(t, d.MarkSeen(ctx, "evt_1"))
	assert.Equal(t, 30*time.Minute, mr.TTL(eventKeyPrefix+"evt_1"))

	mr.FastForward(time.Hour)
	seen, err = d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestNoopImplementations(t *testing.T) {
	ctx := context.Background()

	var c NoopStatusCache
	stored, err := c.Set(ctx, "f", 0, dto.EmptyStatus("f"))
	require.NoError(t, err)
	assert.False(t, stored)
	got, _, err := c.Get(ctx, "f")
	require.NoError(t, err)
	assert.Nil(t, got)

	var d NoopEventDeduplicator
	require.NoError(t, d.MarkSeen(ctx, "evt"))
	seen, err := d.Seen(ctx, "evt")
	require.NoError(t, err)
	assert.False(t, seen)
}
