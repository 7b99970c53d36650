// Package cache provides optional Redis caching of weekly availability
// patterns. The database stays authoritative; every cache path degrades
// to a miss on error.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"clinicbook/internal/models"
)

// AvailabilityCache caches doctor weekly patterns in Redis.
type AvailabilityCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// New creates a cache with the given TTL.
func New(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AvailabilityCache{redis: client, ttl: ttl}
}

func key(doctorID int64) string {
	return fmt.Sprintf("availability:%d", doctorID)
}

// Get returns the cached pattern, if present.
func (c *AvailabilityCache) Get(ctx context.Context, doctorID int64) (models.WeeklyPattern, bool) {
	val, err := c.redis.Get(ctx, key(doctorID)).Result()
	if err != nil {
		return nil, false
	}
	var pattern models.WeeklyPattern
	if err := json.Unmarshal([]byte(val), &pattern); err != nil {
		return nil, false
	}
	return pattern, true
}

// Set stores the pattern for the configured TTL.
func (c *AvailabilityCache) Set(ctx context.Context, doctorID int64, pattern models.WeeklyPattern) {
	data, err := json.Marshal(pattern)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key(doctorID), data, c.ttl).Err()
}

// Invalidate drops the cached pattern, called after a save.
func (c *AvailabilityCache) Invalidate(ctx context.Context, doctorID int64) {
	_ = c.redis.Del(ctx, key(doctorID)).Err()
}
