package nats

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/nats-io/nats.go/jetstream"

	"roomfeed/internal/core"
)

// KVCache stores room snapshots in a JetStream key value bucket, one key per room.
type KVCache struct {
	KV jetstream.KeyValue
}

func (c *KVCache) Save(ctx context.Context, roomID string, items []core.FeedItem) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return err
	}

	_, err = c.KV.Put(ctx, key(roomID), payload)
	return err
}

func (c *KVCache) Load(ctx context.Context, roomID string) ([]core.FeedItem, error) {
	entry, err := c.KV.Get(ctx, key(roomID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var items []core.FeedItem
	if err := json.Unmarshal(entry.Value(), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Room ids may contain characters that are not valid in keys.
func key(roomID string) string {
	return "room." + base64.RawURLEncoding.EncodeToString([]byte(roomID))
}
