package feed_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"roomfeed/internal/core"
	"roomfeed/internal/feed"
)

var base = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func message(id int64, at time.Time) core.FeedItem {
	return core.FeedItem{
		Kind:      core.KindMessage,
		ID:        id,
		RoomID:    "room",
		CreatedAt: at,
		SenderID:  gofakeit.FirstName(),
		Payload:   core.Payload{Text: gofakeit.Word()},
	}
}

func ids(items []core.FeedItem) []int64 {
	return lo.Map(items, func(item core.FeedItem, _ int) int64 {
		return item.ID
	})
}

func requireSorted(t *testing.T, items []core.FeedItem) {
	t.Helper()

	for i := 1; i < len(items); i++ {
		prev, cur := items[i-1], items[i]
		if prev.CreatedAt.Equal(cur.CreatedAt) {
			require.Less(t, prev.ID, cur.ID)
			continue
		}
		require.True(t, prev.CreatedAt.Before(cur.CreatedAt), "%d must come before %d", prev.ID, cur.ID)
	}
}

func TestStore_LoadInitial(t *testing.T) {
	t.Parallel()

	t.Run("deduplicates", func(t *testing.T) {
		t.Parallel()

		a := message(1, base)
		b := message(2, base.Add(time.Minute))

		store := feed.New("room", time.UTC)
		store.LoadInitial([]core.FeedItem{a, b, a})

		require.Equal(t, []int64{1, 2}, ids(store.Items()))
	})

	t.Run("sorts by time then id", func(t *testing.T) {
		t.Parallel()

		store := feed.New("room", time.UTC)
		store.LoadInitial([]core.FeedItem{
			message(5, base.Add(2*time.Minute)),
			message(3, base),
			message(2, base),
			message(4, base.Add(time.Minute)),
		})

		require.Equal(t, []int64{2, 3, 4, 5}, ids(store.Items()))
	})

	t.Run("filters tombstoned input", func(t *testing.T) {
		t.Parallel()

		deleted := message(2, base.Add(time.Minute))
		deleted.Deleted = true

		store := feed.New("room", time.UTC)
		store.LoadInitial([]core.FeedItem{message(1, base), deleted})
		require.Equal(t, []int64{1}, ids(store.Items()))

		store.Merge(message(2, base.Add(time.Minute)))
		require.Equal(t, []int64{1}, ids(store.Items()))
	})

	t.Run("keeps items merged before the first load", func(t *testing.T) {
		t.Parallel()

		store := feed.New("room", time.UTC)
		store.Merge(message(10, base.Add(time.Hour)))
		store.LoadInitial([]core.FeedItem{message(1, base), message(2, base.Add(time.Minute))})

		require.Equal(t, []int64{1, 2, 10}, ids(store.Items()))
	})

	t.Run("reload replaces the sequence but keeps drafts", func(t *testing.T) {
		t.Parallel()

		store := feed.New("room", time.UTC)
		store.LoadInitial([]core.FeedItem{message(1, base), message(2, base.Add(time.Minute))})

		draft := message(-1, base.Add(time.Hour))
		draft.CorrelationID = "corr"
		store.InsertDraft(draft)

		store.LoadInitial([]core.FeedItem{message(3, base.Add(2 * time.Minute))})

		require.Equal(t, []int64{3, -1}, ids(store.Items()))
	})
}

func TestStore_Merge(t *testing.T) {
	t.Parallel()

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()

		x := message(7, base)
		x.Reactions = []core.Reaction{{UserID: "u1", Emoji: "👍"}}
		seed := message(1, base.Add(-time.Minute))

		once := feed.New("room", time.UTC)
		once.LoadInitial([]core.FeedItem{seed})
		require.Equal(t, feed.Inserted, once.Merge(x))

		twice := feed.New("room", time.UTC)
		twice.LoadInitial([]core.FeedItem{seed})
		twice.Merge(x)
		require.Equal(t, feed.Unchanged, twice.Merge(x))

		require.Equal(t, once.Rows(), twice.Rows())
	})

	t.Run("inserts at the sorted position", func(t *testing.T) {
		t.Parallel()

		store := feed.New("room", time.UTC)
		store.LoadInitial([]core.FeedItem{message(1, base), message(3, base.Add(2*time.Minute))})

		store.Merge(message(2, base.Add(time.Minute)))
		store.Merge(message(4, base.Add(-time.Hour)))

		require.Equal(t, []int64{4, 1, 2, 3}, ids(store.Items()))
	})

	t.Run("overwrites mutable fields only", func(t *testing.T) {
		t.Parallel()

		original := message(1, base)
		original.Payload.Text = "original"

		store := feed.New("room", time.UTC)
		store.LoadInitial([]core.FeedItem{original, message(2, base.Add(time.Minute))})

		stale := message(1, base.Add(time.Hour))
		stale.Payload.Text = "stale copy"
		stale.SenderID = "someone else"
		stale.Reactions = []core.Reaction{{UserID: "u1", Emoji: "🔥"}}

		require.Equal(t, feed.Updated, store.Merge(stale))

		got, ok := store.Get(1)
		require.True(t, ok)
		require.Equal(t, "original", got.Payload.Text)
		require.Equal(t, original.SenderID, got.SenderID)
		require.True(t, got.CreatedAt.Equal(base))
		require.Equal(t, stale.Reactions, got.Reactions)
		require.Equal(t, []int64{1, 2}, ids(store.Items()))
	})

	t.Run("updates poll counts", func(t *testing.T) {
		t.Parallel()

		announcement := message(1, base)
		announcement.Kind = core.KindAnnouncement
		announcement.Payload.Poll = &core.Poll{
			Question: "lunch?",
			Options:  []core.PollOption{{Text: "yes", VoteCount: 3}, {Text: "no", VoteCount: 5}},
		}

		store := feed.New("room", time.UTC)
		store.LoadInitial([]core.FeedItem{announcement})

		update := announcement.Clone()
		update.Payload.Poll.Options[0].VoteCount = 4
		store.Merge(update)

		got, _ := store.Get(1)
		require.Equal(t, []int{4, 5}, got.Payload.Poll.Counts())
	})

	t.Run("ignores date headers", func(t *testing.T) {
		t.Parallel()

		store := feed.New("room", time.UTC)
		require.Equal(t, feed.Ignored, store.Merge(core.FeedItem{Kind: core.KindDateHeader, CreatedAt: base}))
		require.Zero(t, store.Len())
	})

	t.Run("preserves the order invariant under random delivery", func(t *testing.T) {
		t.Parallel()

		items := make([]core.FeedItem, 0, 200)
		for i := 1; i <= 200; i++ {
			at := base.Add(time.Duration(gofakeit.Number(0, 72)) * time.Hour)
			items = append(items, message(int64(i), at))
		}

		rnd := rand.New(rand.NewSource(42)) //nolint:gosec
		store := feed.New("room", time.UTC)
		store.LoadInitial(items[:50])
		for _, i := range rnd.Perm(len(items)) {
			store.Merge(items[i])
		}

		rendered := store.Items()
		require.Len(t, rendered, 200)
		require.Len(t, lo.Uniq(ids(rendered)), 200)
		requireSorted(t, rendered)
	})
}

func TestStore_Tombstone(t *testing.T) {
	t.Parallel()

	t.Run("duplicate delivery does not resurrect", func(t *testing.T) {
		t.Parallel()

		store := feed.New("room", time.UTC)
		store.LoadInitial([]core.FeedItem{message(6, base), message(7, base.Add(time.Minute))})

		require.True(t, store.Tombstone(7))
		store.Merge(message(7, base.Add(time.Minute)))

		require.Equal(t, []int64{6}, ids(store.Items()))
		got, ok := store.Get(7)
		require.True(t, ok)
		require.True(t, got.Deleted)
	})

	t.Run("reserves ids that were never seen", func(t *testing.T) {
		t.Parallel()

		store := feed.New("room", time.UTC)
		require.True(t, store.Tombstone(9))
		require.False(t, store.Tombstone(9))

		store.Merge(message(9, base))
		require.Zero(t, store.Len())

		store.LoadInitial([]core.FeedItem{message(9, base), message(10, base)})
		require.Equal(t, []int64{10}, ids(store.Items()))
	})

	t.Run("overwrite rolls a local tombstone back", func(t *testing.T) {
		t.Parallel()

		store := feed.New("room", time.UTC)
		store.LoadInitial([]core.FeedItem{message(1, base)})

		snapshot, _ := store.Get(1)
		require.True(t, store.Hide(1))
		require.Zero(t, store.Len())

		require.True(t, store.Overwrite(snapshot))
		require.Equal(t, []int64{1}, ids(store.Items()))
	})

	t.Run("overwrite keeps a server tombstone", func(t *testing.T) {
		t.Parallel()

		store := feed.New("room", time.UTC)
		store.LoadInitial([]core.FeedItem{message(1, base), message(2, base)})

		snapshot, _ := store.Get(1)
		store.Tombstone(1)
		require.True(t, store.Overwrite(snapshot))

		got, _ := store.Get(1)
		require.True(t, got.Deleted)
		store.Merge(message(1, base))
		require.Equal(t, []int64{2}, ids(store.Items()))
	})

	t.Run("server deletion confirms a local tombstone", func(t *testing.T) {
		t.Parallel()

		for name, confirm := range map[string]func(*feed.Store){
			"tombstone": func(store *feed.Store) { store.Tombstone(1) },
			"merge": func(store *feed.Store) {
				deleted := message(1, base)
				deleted.Deleted = true
				store.Merge(deleted)
			},
		} {
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				store := feed.New("room", time.UTC)
				store.LoadInitial([]core.FeedItem{message(1, base)})

				snapshot, _ := store.Get(1)
				store.Hide(1)
				confirm(store)

				store.Overwrite(snapshot)
				require.Zero(t, store.Len())
			})
		}
	})
}

func TestStore_Drafts(t *testing.T) {
	t.Parallel()

	t.Run("replace draft swaps in the confirmed item", func(t *testing.T) {
		t.Parallel()

		store := feed.New("room", time.UTC)
		store.LoadInitial([]core.FeedItem{message(1, base)})

		draft := message(-5, base.Add(time.Minute))
		draft.CorrelationID = "token"
		require.Equal(t, feed.Inserted, store.InsertDraft(draft))
		require.Equal(t, []int64{1, -5}, ids(store.Items()))

		confirmed := message(42, base.Add(90*time.Second))
		require.Equal(t, feed.DraftReplaced, store.ReplaceDraft(-5, confirmed))
		require.Equal(t, []int64{1, 42}, ids(store.Items()))

		_, ok := store.DraftID("token")
		require.False(t, ok)
	})

	t.Run("echo with correlation token replaces the draft", func(t *testing.T) {
		t.Parallel()

		store := feed.New("room", time.UTC)
		draft := message(-6, base)
		draft.CorrelationID = "token"
		store.InsertDraft(draft)

		echo := message(50, base)
		echo.CorrelationID = "token"
		require.Equal(t, feed.DraftReplaced, store.Merge(echo))

		require.Equal(t, []int64{50}, ids(store.Items()))
		require.Equal(t, feed.Unchanged, store.Merge(echo))
	})

	t.Run("replace when the confirmed id already arrived", func(t *testing.T) {
		t.Parallel()

		store := feed.New("room", time.UTC)
		draft := message(-7, base)
		draft.CorrelationID = "token"
		store.InsertDraft(draft)
		store.Merge(message(60, base))

		store.ReplaceDraft(-7, message(60, base))
		require.Equal(t, []int64{60}, ids(store.Items()))
	})

	t.Run("remove draft", func(t *testing.T) {
		t.Parallel()

		store := feed.New("room", time.UTC)
		store.InsertDraft(message(-8, base))

		require.True(t, store.RemoveDraft(-8))
		require.False(t, store.RemoveDraft(-8))
		require.Zero(t, store.Len())
	})
}

func TestStore_Changes(t *testing.T) {
	t.Parallel()

	store := feed.New("room", time.UTC)
	before := store.Version()

	store.Merge(message(1, base))
	store.Merge(message(2, base))

	select {
	case <-store.Changes():
	default:
		t.Fatal("expected a change notification")
	}
	require.Greater(t, store.Version(), before)

	version := store.Version()
	store.Merge(message(2, base))
	require.Equal(t, version, store.Version())
}
