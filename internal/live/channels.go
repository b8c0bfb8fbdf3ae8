package live

import "fmt"

const DefaultChannelPrefix = "roomfeed"

// EventsChannel is the pub/sub subject carrying server to client events of a room.
func EventsChannel(prefix, roomID string) string {
	return fmt.Sprintf("%s.room.%s.events", orDefault(prefix), roomID)
}

// EmitChannel is the pub/sub subject carrying client to server events of a room.
func EmitChannel(prefix, roomID string) string {
	return fmt.Sprintf("%s.room.%s.emit", orDefault(prefix), roomID)
}

func orDefault(prefix string) string {
	if prefix == "" {
		return DefaultChannelPrefix
	}
	return prefix
}
