package redis_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"roomfeed/internal/config"
	"roomfeed/internal/core"
	"roomfeed/internal/live"
	"roomfeed/internal/redis"
)

func setupRedis(t *testing.T) (*redis.Redis, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)

	r := &redis.Redis{
		Logger: slog.Default(),
		Config: &config.Config{RedisURL: "redis://" + s.Addr(), ChannelPrefix: "test"},
	}
	require.NoError(t, r.Init(t.Context()))
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })

	return r, s
}

func TestRedis_Init(t *testing.T) {
	t.Parallel()

	r, _ := setupRedis(t)
	require.NoError(t, r.HealthCheck(t.Context()))

	bad := &redis.Redis{Logger: slog.Default(), Config: &config.Config{RedisURL: "not a url"}}
	require.Error(t, bad.Init(t.Context()))
}

func TestDialer(t *testing.T) {
	t.Parallel()

	r, s := setupRedis(t)

	conn, err := r.Dialer().Dial(t.Context(), "room")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	t.Run("receive", func(t *testing.T) {
		payload, err := json.Marshal(core.Envelope{Event: core.EventGDStatusUpdate, Room: "room", Data: json.RawMessage(`{"isActive":true}`)})
		require.NoError(t, err)

		s.Publish(live.EventsChannel("test", "room"), "not json")
		s.Publish(live.EventsChannel("test", "room"), string(payload))

		ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
		defer cancel()

		_, err = conn.Receive(ctx)
		require.ErrorIs(t, err, core.ErrInvalidEvent)

		env, err := conn.Receive(ctx)
		require.NoError(t, err)
		require.Equal(t, core.EventGDStatusUpdate, env.Event)
	})

	t.Run("emit", func(t *testing.T) {
		ps := r.Client.Subscribe(t.Context(), live.EmitChannel("test", "room"))
		t.Cleanup(func() { ps.Close() })
		_, err := ps.Receive(t.Context())
		require.NoError(t, err)

		err = conn.Emit(t.Context(), core.Envelope{Event: core.EventLeaveGroup, Room: "room"})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
		defer cancel()

		msg, err := ps.ReceiveMessage(ctx)
		require.NoError(t, err)
		require.JSONEq(t, `{"event":"leaveGroup","room":"room"}`, msg.Payload)
	})

	t.Run("receive honors cancellation", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
		defer cancel()

		_, err := conn.Receive(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestCache(t *testing.T) {
	t.Parallel()

	r, s := setupRedis(t)
	cache := r.Cache()

	items, err := cache.Load(t.Context(), "room")
	require.NoError(t, err)
	require.Nil(t, items)

	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, cache.Save(t.Context(), "room", []core.FeedItem{
		{Kind: core.KindMessage, ID: 3, RoomID: "room", CreatedAt: at, Reactions: []core.Reaction{{UserID: "u", Emoji: "👍"}}},
	}))

	items, err = cache.Load(t.Context(), "room")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, []core.Reaction{{UserID: "u", Emoji: "👍"}}, items[0].Reactions)

	s.FastForward(8 * 24 * time.Hour)

	items, err = cache.Load(t.Context(), "room")
	require.NoError(t, err)
	require.Nil(t, items)
}
