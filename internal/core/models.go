package core

import (
	"slices"
	"time"
)

// Kind tags the FeedItem variant.
type Kind string

const (
	KindMessage      Kind = "message"
	KindAnnouncement Kind = "announcement"
	KindDateHeader   Kind = "date_header"
)

type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
)

// FeedItem is a single entry of a room feed.
//
// ID, RoomID, CreatedAt, SenderID and Payload are fixed once the item is known to a store.
// Reactions, Deleted and the poll counts are the mutable fields.
type FeedItem struct {
	Kind      Kind      `json:"kind"`
	ID        int64     `json:"id"`
	RoomID    string    `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`
	SenderID  string    `json:"senderId,omitempty"`
	Payload   Payload   `json:"payload"`

	Reactions []Reaction `json:"reactions,omitempty"`
	Deleted   bool       `json:"deleted,omitempty"`

	// CorrelationID is set on local drafts and echoed back by the server.
	CorrelationID string `json:"clientId,omitempty"`
}

// IsDraft reports whether the item has not been confirmed by the server yet.
func (i FeedItem) IsDraft() bool {
	return i.ID < 0
}

// Clone returns a deep copy, so the caller may mutate the result freely.
func (i FeedItem) Clone() FeedItem {
	c := i
	c.Reactions = slices.Clone(i.Reactions)
	c.Payload = i.Payload.Clone()
	return c
}

// Payload is the variant specific body. At most one of Media and Poll is set.
type Payload struct {
	Text  string    `json:"text,omitempty"`
	Media *MediaRef `json:"media,omitempty"`
	Poll  *Poll     `json:"poll,omitempty"`
}

func (p Payload) Clone() Payload {
	c := p
	if p.Media != nil {
		m := *p.Media
		c.Media = &m
	}
	if p.Poll != nil {
		poll := p.Poll.Clone()
		c.Poll = &poll
	}
	return c
}

type MediaRef struct {
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
	Name string    `json:"name,omitempty"`
}

// Poll holds aggregate counts only. MyVote is the current user's ballot, when known.
type Poll struct {
	Question string       `json:"question"`
	Options  []PollOption `json:"options"`
	MyVote   *int         `json:"myVote,omitempty"`
}

type PollOption struct {
	Text      string `json:"text"`
	VoteCount int    `json:"votes"`
}

func (p Poll) Clone() Poll {
	c := p
	c.Options = slices.Clone(p.Options)
	if p.MyVote != nil {
		v := *p.MyVote
		c.MyVote = &v
	}
	return c
}

// Counts returns the vote counts in option order.
func (p Poll) Counts() []int {
	counts := make([]int, len(p.Options))
	for i, o := range p.Options {
		counts[i] = o.VoteCount
	}
	return counts
}

type Reaction struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

type MediaKind string

const (
	MediaKindReel MediaKind = "reel"
	MediaKindPost MediaKind = "post"
)

// MediaItem is a reel or a post. Likes is a set of user ids.
type MediaItem struct {
	ID       string    `json:"id"`
	Kind     MediaKind `json:"kind"`
	OwnerID  string    `json:"ownerId"`
	URL      string    `json:"url"`
	Caption  string    `json:"caption,omitempty"`
	Likes    []string  `json:"likes"`
	Comments []Comment `json:"comments"`
}

func (m MediaItem) Clone() MediaItem {
	c := m
	c.Likes = slices.Clone(m.Likes)
	c.Comments = slices.Clone(m.Comments)
	return c
}

// LikedBy doubles as the "did the current user like it" test.
func (m MediaItem) LikedBy(userID string) bool {
	return slices.Contains(m.Likes, userID)
}

type Comment struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

// RoomStatus is room level state pushed by gdStatusUpdate. It is not a feed item.
type RoomStatus struct {
	Active bool `json:"isActive"`
}
