package availability

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache memoizes a day's annotated slot grid per stylist. Entries are short
// lived and deleted whenever a write touches the stylist's day, so a miss or
// a Redis outage only costs a recompute, never staleness past the TTL.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{rdb: rdb, ttl: ttl, logger: logger}
}

// cacheKey normalizes to the UTC calendar date so a timestamp carrying a
// non-UTC offset keys the same entry as the UTC-parsed date it falls on.
func cacheKey(stylistID string, day time.Time) string {
	return "slots:" + stylistID + ":" + day.UTC().Format("2006-01-02")
}

// Get returns the cached grid and whether it was present.
func (c *Cache) Get(ctx context.Context, stylistID string, day time.Time) ([]Slot, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, cacheKey(stylistID, day)).Bytes()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn("slot cache read failed", "err", err)
		}
		return nil, false
	}
	var slots []Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false
	}
	return slots, true
}

func (c *Cache) Set(ctx context.Context, stylistID string, day time.Time, slots []Slot) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(stylistID, day), raw, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("slot cache write failed", "err", err)
	}
}

// Invalidate drops the cached grid for every day the interval touches.
func (c *Cache) Invalidate(ctx context.Context, stylistID string, days ...time.Time) {
	if c == nil || c.rdb == nil {
		return
	}
	seen := map[string]struct{}{}
	for _, day := range days {
		key := cacheKey(stylistID, day)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if err := c.rdb.Del(ctx, key).Err(); err != nil && c.logger != nil {
			c.logger.Warn("slot cache invalidate failed", "err", err)
		}
	}
}
