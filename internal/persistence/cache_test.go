package persistence_test

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"roomfeed/internal/config"
	"roomfeed/internal/core"
	"roomfeed/internal/persistence"
)

func openDB(t *testing.T) *persistence.DB {
	t.Helper()

	db := &persistence.DB{
		Logger: slog.Default(),
		Config: &config.Config{DatabaseURL: filepath.Join(t.TempDir(), "roomfeed.db")},
	}
	require.NoError(t, db.Init(t.Context()))
	t.Cleanup(func() { db.Shutdown(t.Context()) }) //nolint:errcheck

	require.NoError(t, db.HealthCheck(t.Context()))

	return db
}

func TestSnapshotCache(t *testing.T) {
	t.Parallel()

	cache := openDB(t).Cache()

	items, err := cache.Load(t.Context(), "room")
	require.NoError(t, err)
	require.Nil(t, items)

	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	first := []core.FeedItem{
		{Kind: core.KindMessage, ID: 1, RoomID: "room", CreatedAt: at, Payload: core.Payload{Text: gofakeit.Sentence(5)}},
	}
	require.NoError(t, cache.Save(t.Context(), "room", first))

	second := append(first, core.FeedItem{
		Kind: core.KindAnnouncement, ID: 2, RoomID: "room", CreatedAt: at.Add(time.Hour),
		Payload: core.Payload{Poll: &core.Poll{Question: "?", Options: []core.PollOption{{Text: "a", VoteCount: 2}}}},
	})
	require.NoError(t, cache.Save(t.Context(), "room", second))

	items, err = cache.Load(t.Context(), "room")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, first[0].Payload.Text, items[0].Payload.Text)
	require.Equal(t, 2, items[1].Payload.Poll.Options[0].VoteCount)

	other, err := cache.Load(t.Context(), "other")
	require.NoError(t, err)
	require.Empty(t, other)

	require.NoError(t, cache.Forget(t.Context(), "room"))
	items, err = cache.Load(t.Context(), "room")
	require.NoError(t, err)
	require.Nil(t, items)
}
