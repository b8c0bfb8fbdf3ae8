package live

import (
	"encoding/json"
	"fmt"

	"roomfeed/internal/core"
	"roomfeed/internal/identity"
)

type deletedPayload struct {
	ID json.Number `json:"id"`
}

type reactionPayload struct {
	MessageID json.Number     `json:"msgId"`
	Reactions []core.Reaction `json:"reactions"`
}

// Decode validates an inbound envelope and turns it into one of the core.Event variants.
// Unknown event names and malformed payloads fail with core.ErrInvalidEvent.
func Decode(env core.Envelope) (core.Event, error) {
	switch env.Event {
	case core.EventReceiveMessage:
		record, err := decodeRecord(env)
		if err != nil {
			return nil, err
		}
		return core.MessageReceived{Record: record}, nil

	case core.EventNewAnnouncement:
		record, err := decodeRecord(env)
		if err != nil {
			return nil, err
		}
		return core.AnnouncementCreated{Record: record}, nil

	case core.EventDeleteAnnouncement, core.EventMessageDeleted:
		id, err := decodeDeletedID(env.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", core.ErrInvalidEvent, env.Event, err)
		}
		return core.ItemDeleted{Name: env.Event, ID: id}, nil

	case core.EventMessageReaction:
		var p reactionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", core.ErrInvalidEvent, env.Event, err)
		}
		id, err := identity.ParseID(p.MessageID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", core.ErrInvalidEvent, env.Event, err)
		}
		if p.Reactions == nil {
			p.Reactions = []core.Reaction{}
		}
		return core.ReactionsUpdated{ID: id, Reactions: p.Reactions}, nil

	case core.EventGDStatusUpdate:
		var status core.RoomStatus
		if err := json.Unmarshal(env.Data, &status); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", core.ErrInvalidEvent, env.Event, err)
		}
		return core.StatusUpdated{Status: status}, nil

	default:
		return nil, fmt.Errorf("%w: unknown event %q", core.ErrInvalidEvent, env.Event)
	}
}

func decodeRecord(env core.Envelope) (core.RawRecord, error) {
	var record core.RawRecord
	if err := json.Unmarshal(env.Data, &record); err != nil {
		return core.RawRecord{}, fmt.Errorf("%w: %s: %w", core.ErrInvalidEvent, env.Event, err)
	}
	if record.RoomID == "" {
		record.RoomID = env.Room
	}
	return record, nil
}

// decodeDeletedID accepts a bare id or an object with an id field.
func decodeDeletedID(data json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return identity.ParseID(n)
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return identity.ParseID(json.Number(s))
	}

	var p deletedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, err
	}
	return identity.ParseID(p.ID)
}

// Encode wraps an outgoing payload into an envelope for the room.
func Encode(roomID, event string, payload any) (core.Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return core.Envelope{}, fmt.Errorf("encoding %s: %w", event, err)
	}
	return core.Envelope{Event: event, Room: roomID, Data: data}, nil
}
