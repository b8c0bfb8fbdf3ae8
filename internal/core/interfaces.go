package core

import (
	"context"
)

// Conn is a live pub/sub connection scoped to one room.
type Conn interface {
	Emit(ctx context.Context, env Envelope) error
	// Receive blocks until the next server event, ctx cancellation or connection loss.
	Receive(ctx context.Context) (Envelope, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, roomID string) (Conn, error)
}

// FeedAPI is the paginated history source.
type FeedAPI interface {
	Messages(ctx context.Context, groupID string) ([]RawRecord, error)
	Announcements(ctx context.Context, groupID string) ([]RawRecord, error)
}

type VoteAPI interface {
	Vote(ctx context.Context, announcementID int64, userID string, option int) ([]PollOption, error)
}

type DeleteAPI interface {
	DeleteAnnouncement(ctx context.Context, id int64) error
	DeleteMessage(ctx context.Context, groupID string, id int64) error
}

type MediaAPI interface {
	Like(ctx context.Context, kind MediaKind, itemID, userID string, like bool) ([]string, error)
	Comment(ctx context.Context, kind MediaKind, itemID, userID, text string) ([]Comment, error)
	Media(ctx context.Context, kind MediaKind) ([]MediaItem, error)
}

// Emitter sends client to server events on a joined room.
type Emitter interface {
	Emit(ctx context.Context, event string, payload any) error
}

// Player is the media player collaborator driven by the activation window.
type Player interface {
	Activate(index int)
	Deactivate(index int)
	SetPlaying(index int, playing bool)
}

// SnapshotCache persists the last known feed of a room so a cold start renders without a flash.
type SnapshotCache interface {
	Save(ctx context.Context, roomID string, items []FeedItem) error
	Load(ctx context.Context, roomID string) ([]FeedItem, error)
}
