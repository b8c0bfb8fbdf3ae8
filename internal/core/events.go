package core

import (
	"encoding/json"
	"time"
)

// Live channel event names.
const (
	EventJoinGroup          = "joinGroup"
	EventLeaveGroup         = "leaveGroup"
	EventSendMessage        = "sendMessage"
	EventReceiveMessage     = "receiveMessage"
	EventNewAnnouncement    = "newAnnouncement"
	EventDeleteAnnouncement = "deleteAnnouncement"
	EventMessageDeleted     = "messageDeleted"
	EventAddReaction        = "addReaction"
	EventMessageReaction    = "messageReaction"
	EventGDStatusUpdate     = "gdStatusUpdate"
)

// Envelope is the wire frame of every live channel event, in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Room  string          `json:"room,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RawRecord is a feed record as the server sends it, over REST or the live channel.
type RawRecord struct {
	ID        json.Number `json:"id,omitempty"`
	RoomID    string      `json:"roomId,omitempty"`
	Kind      string      `json:"kind,omitempty"`
	CreatedAt *time.Time  `json:"createdAt,omitempty"`
	SenderID  string      `json:"senderId,omitempty"`
	Text      string      `json:"text,omitempty"`
	Media     *RawMedia   `json:"media,omitempty"`
	Poll      *RawPoll    `json:"poll,omitempty"`
	Reactions []Reaction  `json:"reactions,omitempty"`
	Deleted   bool        `json:"deleted,omitempty"`
	ClientID  string      `json:"clientId,omitempty"`
}

type RawMedia struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

type RawPoll struct {
	Question string       `json:"question"`
	Options  []PollOption `json:"options"`
	MyVote   *int         `json:"myVote,omitempty"`
}

// Event is a decoded server to client event. The concrete types below are the only variants.
type Event interface {
	EventName() string
}

type MessageReceived struct {
	Record RawRecord
}

type AnnouncementCreated struct {
	Record RawRecord
}

// ItemDeleted is produced by both deleteAnnouncement and messageDeleted.
type ItemDeleted struct {
	Name string
	ID   int64
}

type ReactionsUpdated struct {
	ID        int64
	Reactions []Reaction
}

type StatusUpdated struct {
	Status RoomStatus
}

func (MessageReceived) EventName() string     { return EventReceiveMessage }
func (AnnouncementCreated) EventName() string { return EventNewAnnouncement }
func (e ItemDeleted) EventName() string       { return e.Name }
func (ReactionsUpdated) EventName() string    { return EventMessageReaction }
func (StatusUpdated) EventName() string       { return EventGDStatusUpdate }

// Outgoing payloads.

type JoinPayload struct {
	RoomID string `json:"roomId"`
}

type SendMessagePayload struct {
	RoomID   string     `json:"roomId"`
	SenderID string     `json:"senderId"`
	Text     string     `json:"text,omitempty"`
	Media    *RawMedia  `json:"media,omitempty"`
	ClientID string     `json:"clientId"`
	SentAt   *time.Time `json:"createdAt,omitempty"`
}

type AddReactionPayload struct {
	MessageID int64  `json:"msgId"`
	Emoji     string `json:"emoji"`
	UserID    string `json:"userId"`
}
