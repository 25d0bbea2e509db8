package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// dedupeTTL bounds how long a seen event key is cached. The Postgres unique
// constraint on event_key is the real guarantee; this cache only saves a
// round trip when two scanners race on the same key within a short window.
const dedupeTTL = 24 * time.Hour

// DedupeCache is a best-effort seen-before check for dispatch event keys.
type DedupeCache struct {
	client *Client
	logger *zap.Logger
}

// NewDedupeCache creates a dedup cache on top of an existing client.
func NewDedupeCache(client *Client, logger *zap.Logger) *DedupeCache {
	return &DedupeCache{client: client, logger: logger}
}

func (c *DedupeCache) buildKey(eventKey string) string {
	return fmt.Sprintf("dispatch:seen:%s", eventKey)
}

// Seen reports whether the event key was already marked. Errors degrade to
// "not seen" so that a Redis outage never blocks dispatch.
func (c *DedupeCache) Seen(ctx context.Context, eventKey string) bool {
	_, err := c.client.rdb.Get(ctx, c.buildKey(eventKey)).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.Warn("dedup cache lookup failed, falling through to storage",
			zap.Error(err),
			zap.String("event_key", eventKey),
		)
		return false
	}
	return true
}

// Mark records an event key after a successful enqueue. Failures are logged
// and ignored.
func (c *DedupeCache) Mark(ctx context.Context, eventKey string) {
	if err := c.client.rdb.Set(ctx, c.buildKey(eventKey), "1", dedupeTTL).Err(); err != nil {
		c.logger.Warn("dedup cache mark failed",
			zap.Error(err),
			zap.String("event_key", eventKey),
		)
	}
}
