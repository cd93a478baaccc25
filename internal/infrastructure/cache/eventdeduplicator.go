package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	eventKeyPrefix  = "rackgrid:gateway_event:"
	DefaultEventTTL = 72 * time.Hour
)

// RedisEventDeduplicator remembers processed gateway event ids for ttl. It is
// a fast path in front of the payment_events ledger, which stays the source of
// truth once a key expires.
type RedisEventDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisEventDeduplicator(client *redis.Client, ttl time.Duration) *RedisEventDeduplicator {
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return &RedisEventDeduplicator{client: client, ttl: ttl}
}

func (d *RedisEventDeduplicator) key(eventID string) string {
	return eventKeyPrefix + eventID
}

func (d *RedisEventDeduplicator) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event key: %w", err)
	}
	return n > 0, nil
}

// MarkSeen uses SETNX so a concurrent marker from another instance keeps its
// original TTL.
func (d *RedisEventDeduplicator) MarkSeen(ctx context.Context, eventID string) error {
	if err := d.client.SetNX(ctx, d.key(eventID), "1", d.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark event: %w", err)
	}
	return nil
}
