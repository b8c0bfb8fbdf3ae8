package live_test

import (
	"context"
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"roomfeed/internal/core"
	"roomfeed/internal/feed"
	"roomfeed/internal/identity"
	"roomfeed/internal/live"
	"roomfeed/pkg/retry"
)

var (
	base        = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	fastBackoff = retry.Backoff{Min: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}
)

func storeIDs(store *feed.Store) []int64 {
	return lo.Map(store.Items(), func(item core.FeedItem, _ int) int64 {
		return item.ID
	})
}

func requireIDs(t *testing.T, store *feed.Store, expected ...int64) {
	t.Helper()

	require.Eventually(t, func() bool {
		return slices.Equal(storeIDs(store), expected)
	}, 2*time.Second, 5*time.Millisecond, "expected %v", expected)
}

type harness struct {
	dialer *fakeDialer
	store  *feed.Store
	bridge *live.Bridge
	cancel context.CancelFunc
	done   chan error
}

func startBridge(t *testing.T, opts ...live.Option) *harness {
	t.Helper()

	h := &harness{
		dialer: newFakeDialer(),
		store:  feed.New("room", time.UTC),
		done:   make(chan error, 1),
	}

	h.bridge = live.NewBridge("room", h.dialer, h.store, identity.New(nil), nil,
		append([]live.Option{live.WithBackoff(fastBackoff)}, opts...)...)

	ctx, cancel := context.WithCancel(t.Context())
	h.cancel = cancel
	t.Cleanup(cancel)

	go func() {
		h.done <- h.bridge.Run(ctx)
	}()

	return h
}

// join accepts the next connection and consumes its joinGroup.
func (h *harness) join(t *testing.T) *fakeConn {
	t.Helper()

	conn := h.dialer.accept(t)
	env := conn.next(t)
	require.Equal(t, core.EventJoinGroup, env.Event)
	require.Equal(t, "room", env.Room)

	require.Eventually(t, func() bool {
		return h.bridge.State() == live.Joined
	}, 2*time.Second, time.Millisecond)

	return conn
}

func TestBridge_BuffersUntilLoaded(t *testing.T) {
	t.Parallel()

	h := startBridge(t)
	conn := h.join(t)

	conn.push(t, core.EventReceiveMessage, record(10, base.Add(time.Hour)))
	conn.push(t, core.EventMessageDeleted, 1)

	h.store.LoadInitial([]core.FeedItem{
		{Kind: core.KindMessage, ID: 1, RoomID: "room", CreatedAt: base},
		{Kind: core.KindMessage, ID: 2, RoomID: "room", CreatedAt: base.Add(time.Minute)},
	})
	h.bridge.MarkLoaded()

	requireIDs(t, h.store, 2, 10)
}

func TestBridge_AppliesEvents(t *testing.T) {
	t.Parallel()

	statuses := make(chan core.RoomStatus, 1)
	h := startBridge(t, live.WithStatusHandler(func(s core.RoomStatus) {
		statuses <- s
	}))
	h.store.LoadInitial([]core.FeedItem{{Kind: core.KindMessage, ID: 1, RoomID: "room", CreatedAt: base}})
	h.bridge.MarkLoaded()

	conn := h.join(t)

	t.Run("messages and announcements are merged", func(t *testing.T) {
		conn.push(t, core.EventReceiveMessage, record(3, base.Add(2*time.Minute)))
		conn.push(t, core.EventNewAnnouncement, record(2, base.Add(time.Minute)))

		requireIDs(t, h.store, 1, 2, 3)

		announcement, ok := h.store.Get(2)
		require.True(t, ok)
		require.Equal(t, core.KindAnnouncement, announcement.Kind)
	})

	t.Run("deleted items are not resurrected", func(t *testing.T) {
		conn.push(t, core.EventDeleteAnnouncement, map[string]any{"id": 2})
		conn.push(t, core.EventNewAnnouncement, record(2, base.Add(time.Minute)))
		conn.push(t, core.EventReceiveMessage, record(4, base.Add(3*time.Minute)))

		requireIDs(t, h.store, 1, 3, 4)
	})

	t.Run("reactions are overwritten", func(t *testing.T) {
		reactions := []core.Reaction{{UserID: "u1", Emoji: "👍"}, {UserID: "u2", Emoji: "🔥"}}
		conn.push(t, core.EventMessageReaction, map[string]any{"msgId": 3, "reactions": reactions})

		require.Eventually(t, func() bool {
			item, _ := h.store.Get(3)
			return len(item.Reactions) == 2
		}, 2*time.Second, 5*time.Millisecond)
	})

	t.Run("events of other rooms are dropped", func(t *testing.T) {
		raw, err := json.Marshal(record(99, base))
		require.NoError(t, err)
		conn.in <- core.Envelope{Event: core.EventReceiveMessage, Room: "other", Data: raw}

		conn.push(t, core.EventReceiveMessage, record(5, base.Add(4*time.Minute)))

		requireIDs(t, h.store, 1, 3, 4, 5)
	})

	t.Run("malformed events are skipped", func(t *testing.T) {
		conn.in <- core.Envelope{Event: core.EventReceiveMessage, Room: "room", Data: json.RawMessage(`"nope"`)}
		conn.push(t, core.EventReceiveMessage, map[string]any{"text": "no id"})
		conn.push(t, core.EventReceiveMessage, record(6, base.Add(5*time.Minute)))

		requireIDs(t, h.store, 1, 3, 4, 5, 6)
		require.Equal(t, live.Joined, h.bridge.State())
	})

	t.Run("status updates reach the handler", func(t *testing.T) {
		conn.push(t, core.EventGDStatusUpdate, core.RoomStatus{Active: true})

		select {
		case s := <-statuses:
			require.True(t, s.Active)
		case <-time.After(2 * time.Second):
			t.Fatal("no status update")
		}

		s, ok := h.bridge.Status()
		require.True(t, ok)
		require.True(t, s.Active)
	})
}

func TestBridge_Emit(t *testing.T) {
	t.Parallel()

	t.Run("fails when not joined", func(t *testing.T) {
		t.Parallel()

		bridge := live.NewBridge("room", newFakeDialer(), feed.New("room", time.UTC), nil, nil)

		err := bridge.Emit(t.Context(), core.EventAddReaction, core.AddReactionPayload{MessageID: 1})
		require.ErrorIs(t, err, core.ErrNotJoined)
		require.ErrorIs(t, err, core.ErrTransient)
	})

	t.Run("sends the envelope when joined", func(t *testing.T) {
		t.Parallel()

		h := startBridge(t)
		conn := h.join(t)

		err := h.bridge.Emit(t.Context(), core.EventAddReaction, core.AddReactionPayload{MessageID: 1, Emoji: "👍", UserID: "me"})
		require.NoError(t, err)

		env := conn.next(t)
		require.Equal(t, core.EventAddReaction, env.Event)
		require.JSONEq(t, `{"msgId":1,"emoji":"👍","userId":"me"}`, string(env.Data))
	})
}

func TestBridge_Reconnects(t *testing.T) {
	t.Parallel()

	reconnected := make(chan struct{}, 1)
	h := startBridge(t, live.WithReconnectHandler(func(context.Context) {
		reconnected <- struct{}{}
	}))
	h.store.LoadInitial(nil)
	h.bridge.MarkLoaded()

	first := h.join(t)

	h.dialer.failNext(2)
	first.Close()

	second := h.join(t)

	select {
	case <-reconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect handler not called")
	}

	second.push(t, core.EventReceiveMessage, record(1, base))
	requireIDs(t, h.store, 1)
}

func TestBridge_Teardown(t *testing.T) {
	t.Parallel()

	h := startBridge(t)
	conn := h.join(t)

	h.cancel()

	env := conn.next(t)
	require.Equal(t, core.EventLeaveGroup, env.Event)

	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}
	require.Equal(t, live.Disconnected, h.bridge.State())

	err := h.bridge.Emit(t.Context(), core.EventAddReaction, core.AddReactionPayload{})
	require.ErrorIs(t, err, core.ErrNotJoined)
}
