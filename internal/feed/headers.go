package feed

import (
	"time"

	"roomfeed/internal/core"
)

// render materializes the visible sequence with synthesized date headers. Called with s.mu held.
func (s *Store) render() []core.FeedItem {
	rows := make([]core.FeedItem, 0, len(s.items)+8)

	var lastDay time.Time
	for _, item := range s.items {
		if !s.visible(item) {
			continue
		}

		day := StartOfDay(item.CreatedAt, s.loc)
		if !day.Equal(lastDay) {
			rows = append(rows, core.FeedItem{
				Kind:      core.KindDateHeader,
				RoomID:    s.roomID,
				CreatedAt: day,
			})
			lastDay = day
		}

		rows = append(rows, item.Clone())
	}

	return rows
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayLabel is the presentation label of a date header relative to now.
func DayLabel(day, now time.Time) string {
	day = StartOfDay(day, now.Location())
	today := StartOfDay(now, now.Location())

	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case day.Year() == today.Year():
		return day.Format("Mon, Jan 2")
	default:
		return day.Format("Jan 2, 2006")
	}
}
