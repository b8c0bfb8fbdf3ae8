// Package identity turns raw server records into feed items with a stable identity and ordering key.
package identity

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"roomfeed/internal/core"
)

// draftSeq hands out temporary ids for local drafts. Server ids are positive, drafts count down from -1.
var draftSeq atomic.Int64

// NextDraftID returns a process wide unique negative id.
func NextDraftID() int64 {
	return -draftSeq.Add(1)
}

type Collator struct {
	Logger *slog.Logger
	// Now is the clock used for records without a timestamp. Defaults to time.Now.
	Now func() time.Time
}

func New(logger *slog.Logger) *Collator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collator{
		Logger: logger.With("component", "identity.Collator"),
		Now:    time.Now,
	}
}

func (c *Collator) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Normalize builds a FeedItem of the given kind from a raw record.
// A server provided timestamp always wins; "now" is only used when the record has none.
func (c *Collator) Normalize(kind core.Kind, raw core.RawRecord) (core.FeedItem, error) {
	id, err := ParseID(raw.ID)
	if err != nil {
		return core.FeedItem{}, err
	}

	if kind == "" {
		kind = core.Kind(raw.Kind)
	}
	if kind != core.KindMessage && kind != core.KindAnnouncement {
		kind = core.KindMessage
	}

	createdAt := c.now()
	if raw.CreatedAt != nil && !raw.CreatedAt.IsZero() {
		createdAt = *raw.CreatedAt
	}

	item := core.FeedItem{
		Kind:          kind,
		ID:            id,
		RoomID:        raw.RoomID,
		CreatedAt:     createdAt,
		SenderID:      raw.SenderID,
		Payload:       payload(raw),
		Deleted:       raw.Deleted,
		CorrelationID: raw.ClientID,
	}
	if len(raw.Reactions) > 0 {
		item.Reactions = append([]core.Reaction(nil), raw.Reactions...)
	}

	return item, nil
}

// NormalizeAll normalizes a batch, logging and skipping records that cannot be identified.
func (c *Collator) NormalizeAll(kind core.Kind, raws []core.RawRecord) []core.FeedItem {
	items := make([]core.FeedItem, 0, len(raws))

	for _, raw := range raws {
		item, err := c.Normalize(kind, raw)
		if err != nil {
			c.Logger.Warn("dropping record", "error", err, "room", raw.RoomID)
			continue
		}
		items = append(items, item)
	}

	return items
}

// Draft builds a local, unconfirmed message. It gets a negative id and a correlation token
// which the server echoes back with the real id.
func (c *Collator) Draft(roomID, senderID string, body core.Payload) core.FeedItem {
	return core.FeedItem{
		Kind:          core.KindMessage,
		ID:            NextDraftID(),
		RoomID:        roomID,
		CreatedAt:     c.now(),
		SenderID:      senderID,
		Payload:       body,
		CorrelationID: uuid.NewString(),
	}
}

// ParseID accepts ids sent as JSON numbers or numeric strings. Only positive ids are valid server ids.
func ParseID(n fmt.Stringer) (int64, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return 0, core.ErrMissingID
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer id", core.ErrMissingID, s)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: %d is not a server id", core.ErrMissingID, id)
	}

	return id, nil
}

func payload(raw core.RawRecord) core.Payload {
	p := core.Payload{Text: raw.Text}

	if raw.Media != nil && raw.Media.URL != "" {
		p.Media = &core.MediaRef{
			Type: mediaType(raw.Media.Type),
			URL:  raw.Media.URL,
			Name: raw.Media.Name,
		}
	}

	if raw.Poll != nil {
		poll := core.Poll{
			Question: raw.Poll.Question,
			Options:  append([]core.PollOption(nil), raw.Poll.Options...),
		}
		if raw.Poll.MyVote != nil && *raw.Poll.MyVote >= 0 && *raw.Poll.MyVote < len(poll.Options) {
			v := *raw.Poll.MyVote
			poll.MyVote = &v
		}
		p.Poll = &poll
	}

	return p
}

func mediaType(t string) core.MediaType {
	switch strings.ToLower(t) {
	case "image", "photo":
		return core.MediaImage
	case "video":
		return core.MediaVideo
	default:
		return core.MediaDocument
	}
}
