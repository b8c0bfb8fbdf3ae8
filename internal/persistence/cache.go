package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roomfeed/internal/core"
)

// Snapshot is the last known rendered feed of a room.
type Snapshot struct {
	RoomID    string `gorm:"primaryKey"`
	Items     []byte
	Count     int
	UpdatedAt time.Time
}

type SnapshotCache struct {
	DB *DB
}

func (c *SnapshotCache) Save(ctx context.Context, roomID string, items []core.FeedItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	return c.DB.Model(&Snapshot{}).
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"items", "count", "updated_at"}),
		}).
		Create(&Snapshot{RoomID: roomID, Items: data, Count: len(items)}).
		Error
}

func (c *SnapshotCache) Load(ctx context.Context, roomID string) ([]core.FeedItem, error) {
	var snapshot Snapshot

	err := c.DB.Model(&Snapshot{}).
		WithContext(ctx).
		Where("room_id = ?", roomID).
		First(&snapshot).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var items []core.FeedItem
	if err := json.Unmarshal(snapshot.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return items, nil
}

// Forget drops the room's snapshot.
func (c *SnapshotCache) Forget(ctx context.Context, roomID string) error {
	return c.DB.Model(&Snapshot{}).
		WithContext(ctx).
		Where("room_id = ?", roomID).
		Delete(&Snapshot{}).
		Error
}
