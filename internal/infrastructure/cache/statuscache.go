package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rackgrid/rackgrid/internal/application/subscription/dto"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

const (
	statusKeyPrefix  = "rackgrid:status:"
	versionKeyPrefix = "rackgrid:status-version:"
	DefaultStatusTTL = 5 * time.Minute
	versionTTL       = 24 * time.Hour
)

// setIfCurrent stores KEYS[1] only while the version counter in KEYS[2]
// still equals the version the caller read before loading.
var setIfCurrent = redis.NewScript(`
	local current = tonumber(redis.call('GET', KEYS[2]) or '0')
	if current ~= tonumber(ARGV[1]) then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	return 1
`)

// RedisStatusCache stores facility status snapshots as JSON strings. Entries
// expire after ttl plus up to 20% jitter so a burst of writes does not expire
// together. Each facility also has a version counter that Invalidate bumps,
// so a snapshot loaded before an invalidation is never written after it.
type RedisStatusCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Interface
}

func NewRedisStatusCache(client *redis.Client, ttl time.Duration, logger logger.Interface) *RedisStatusCache {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &RedisStatusCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisStatusCache) key(facilityID string) string {
	return statusKeyPrefix + facilityID
}

func (c *RedisStatusCache) versionKey(facilityID string) string {
	return versionKeyPrefix + facilityID
}

// Get returns nil on a miss, together with the version to pass to Set.
func (c *RedisStatusCache) Get(ctx context.Context, facilityID string) (*dto.StatusDTO, int64, error) {
	values, err := c.client.MGet(ctx, c.key(facilityID), c.versionKey(facilityID)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get status from cache: %w", err)
	}

	var version int64
	if raw, ok := values[1].(string); ok {
		if version, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, 0, fmt.Errorf("invalid status cache version %q: %w", raw, err)
		}
	}

	raw, ok := values[0].(string)
	if !ok {
		return nil, version, nil
	}
	var status dto.StatusDTO
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		// A payload from an older layout is treated as a miss and dropped.
		c.logger.Warnw("dropping undecodable status cache entry", "facility_id", facilityID, "error", err)
		_ = c.client.Del(ctx, c.key(facilityID)).Err()
		return nil, version, nil
	}
	return &status, version, nil
}

// Set stores status if the facility has not been invalidated since version
// was read. It reports whether the entry was written.
func (c *RedisStatusCache) Set(ctx context.Context, facilityID string, version int64, status *dto.StatusDTO) (bool, error) {
	raw, err := json.Marshal(status)
	if err != nil {
		return false, fmt.Errorf("failed to encode status: %w", err)
	}
	stored, err := setIfCurrent.Run(ctx, c.client,
		[]string{c.key(facilityID), c.versionKey(facilityID)},
		version, raw, c.jitteredTTL().Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to set status in cache: %w", err)
	}
	return stored == 1, nil
}

// Invalidate drops the entry and moves the version on in one transaction.
func (c *RedisStatusCache) Invalidate(ctx context.Context, facilityID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.versionKey(facilityID))
		pipe.Expire(ctx, c.versionKey(facilityID), versionTTL)
		pipe.Del(ctx, c.key(facilityID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate status cache: %w", err)
	}
	return nil
}

func (c *RedisStatusCache) jitteredTTL() time.Duration {
	jitter := int64(c.ttl) / 5
	if jitter <= 0 {
		return c.ttl
	}
	return c.ttl + time.Duration(rand.Int64N(jitter))
}
