package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/k0kubun/pp"
	"github.com/samber/lo"

	"roomfeed/internal/core"
	"roomfeed/internal/feed"
)

// filterRows keeps items of the given kind and the date headers that still precede an item.
func filterRows(rows []core.FeedItem, kind string) []core.FeedItem {
	var want core.Kind
	switch kind {
	case "messages":
		want = core.KindMessage
	case "announcements":
		want = core.KindAnnouncement
	default:
		return rows
	}

	out := make([]core.FeedItem, 0, len(rows))
	var header *core.FeedItem

	for _, row := range rows {
		switch {
		case row.Kind == core.KindDateHeader:
			header = &row
		case row.Kind == want:
			if header != nil {
				out = append(out, *header)
				header = nil
			}
			out = append(out, row)
		}
	}

	return out
}

func render(w io.Writer, rows []core.FeedItem, now time.Time, pretty bool) error {
	if pretty {
		_, err := pp.Fprintln(w, rows)
		return err
	}

	var b strings.Builder
	for _, row := range rows {
		switch row.Kind {
		case core.KindDateHeader:
			fmt.Fprintf(&b, "\n── %s ──\n", feed.DayLabel(row.CreatedAt, now))
		case core.KindAnnouncement:
			renderAnnouncement(&b, row, now)
		default:
			renderMessage(&b, row, now)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderMessage(b *strings.Builder, item core.FeedItem, now time.Time) {
	status := humanize.RelTime(item.CreatedAt, now, "ago", "from now")
	if item.IsDraft() {
		status = "sending"
	}

	fmt.Fprintf(b, "[%s] %s: %s", item.CreatedAt.In(now.Location()).Format("15:04"), item.SenderID, item.Payload.Text)
	if media := item.Payload.Media; media != nil {
		fmt.Fprintf(b, " <%s %s>", media.Type, media.URL)
	}
	fmt.Fprintf(b, " (%s)", status)

	if len(item.Reactions) > 0 {
		emojis := lo.Map(item.Reactions, func(r core.Reaction, _ int) string { return r.Emoji })
		counts := map[string]int{}
		for _, emoji := range emojis {
			counts[emoji]++
		}
		emojis = lo.Uniq(emojis)
		parts := lo.Map(emojis, func(emoji string, _ int) string {
			return fmt.Sprintf("%s %d", emoji, counts[emoji])
		})
		fmt.Fprintf(b, " [%s]", strings.Join(parts, " "))
	}

	b.WriteString("\n")
}

func renderAnnouncement(b *strings.Builder, item core.FeedItem, now time.Time) {
	fmt.Fprintf(b, "📣 #%d %s", item.ID, item.Payload.Text)
	fmt.Fprintf(b, " (%s)\n", humanize.RelTime(item.CreatedAt, now, "ago", "from now"))

	poll := item.Payload.Poll
	if poll == nil {
		return
	}

	total := lo.Sum(poll.Counts())
	fmt.Fprintf(b, "   %s (%s votes)\n", poll.Question, humanize.Comma(int64(total)))

	for i, option := range poll.Options {
		mark := " "
		if poll.MyVote != nil && *poll.MyVote == i {
			mark = "●"
		}
		fmt.Fprintf(b, "   %s %d. %s: %d\n", mark, i, option.Text, option.VoteCount)
	}
}
