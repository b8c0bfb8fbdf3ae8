package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"roomfeed/internal/core"
)

const defaultCacheTTL = 7 * 24 * time.Hour

// Cache stores room snapshots as JSON strings with a TTL.
type Cache struct {
	Client *redis.Client
	TTL    time.Duration
}

func (c *Cache) key(roomID string) string {
	return "roomfeed:snapshot:" + roomID
}

func (c *Cache) Save(ctx context.Context, roomID string, items []core.FeedItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	ttl := c.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return c.Client.Set(ctx, c.key(roomID), data, ttl).Err()
}

func (c *Cache) Load(ctx context.Context, roomID string) ([]core.FeedItem, error) {
	data, err := c.Client.Get(ctx, c.key(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var items []core.FeedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return items, nil
}
