// Package cache provides a Redis read-through cache for daily bar series, so
// repeated backtests against the same benchmark within the TTL window do not
// hammer the market-data vendor.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/huhk345/alphagen-ai/internal/domain"
)

const keyPrefix = "alphagen:prices:"

// PriceCache stores price series keyed by ticker.
type PriceCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewPriceCache wraps a Redis client with the given entry TTL.
func NewPriceCache(client redis.Cmdable, ttl time.Duration) *PriceCache {
	return &PriceCache{client: client, ttl: ttl}
}

// Get returns the cached series for a ticker. The second return is false on a
// miss; an error means Redis itself failed.
func (c *PriceCache) Get(ctx context.Context, ticker string) ([]domain.PricePoint, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+ticker).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", ticker, err)
	}
	var points []domain.PricePoint
	if err := json.Unmarshal([]byte(raw), &points); err != nil {
		return nil, false, fmt.Errorf("cache decode %s: %w", ticker, err)
	}
	return points, true, nil
}

// Set stores a price series under the ticker key with the cache TTL.
func (c *PriceCache) Set(ctx context.Context, ticker string, points []domain.PricePoint) error {
	raw, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", ticker, err)
	}
	if err := c.client.Set(ctx, keyPrefix+ticker, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", ticker, err)
	}
	return nil
}
