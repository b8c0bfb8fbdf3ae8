// Package live connects a room's feed store to the server push channel.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"roomfeed/internal/core"
	"roomfeed/internal/feed"
	"roomfeed/internal/identity"
	"roomfeed/pkg/async"
	"roomfeed/pkg/pips"
	"roomfeed/pkg/pips/apply"
	"roomfeed/pkg/retry"
)

var (
	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomfeed_live_events_processed_total",
		Help: "The total number of live events processed, by event name and status",
	}, []string{"event", "status"})

	stateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomfeed_live_state_transitions_total",
		Help: "The total number of bridge state transitions, by target state",
	}, []string{"state"})

	reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomfeed_live_reconnects_total",
		Help: "The total number of reconnect attempts",
	})
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Joined
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Joined:
		return "joined"
	default:
		return "disconnected"
	}
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithStatusHandler registers a callback for room level status updates. It runs on the bridge goroutine.
func WithStatusHandler(fn func(core.RoomStatus)) Option {
	return func(b *Bridge) {
		b.onStatus = fn
	}
}

// WithReconnectHandler registers a callback run after every rejoin that follows a lost connection.
func WithReconnectHandler(fn func(ctx context.Context)) Option {
	return func(b *Bridge) {
		b.onReconnect = fn
	}
}

func WithBackoff(backoff retry.Backoff) Option {
	return func(b *Bridge) {
		b.backoff = backoff
	}
}

// Bridge keeps one room joined on the live channel and forwards server events into the room's store.
// Events received before MarkLoaded are buffered and replayed in arrival order.
type Bridge struct {
	logger   *slog.Logger
	roomID   string
	dialer   core.Dialer
	store    *feed.Store
	collator *identity.Collator
	backoff  retry.Backoff

	onStatus    func(core.RoomStatus)
	onReconnect func(ctx context.Context)

	state  atomic.Int32
	status atomic.Pointer[core.RoomStatus]

	connMu sync.RWMutex
	conn   core.Conn

	mu      sync.Mutex
	loaded  bool
	pending []core.Event
}

func NewBridge(roomID string, dialer core.Dialer, store *feed.Store, collator *identity.Collator, logger *slog.Logger, opts ...Option) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if collator == nil {
		collator = identity.New(logger)
	}

	b := &Bridge{
		logger:   logger.With("component", "live.Bridge", "room", roomID),
		roomID:   roomID,
		dialer:   dialer,
		store:    store,
		collator: collator,
		backoff:  retry.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

func (b *Bridge) RoomID() string {
	return b.roomID
}

func (b *Bridge) State() State {
	return State(b.state.Load())
}

// Status returns the last room status pushed by the server, if any.
func (b *Bridge) Status() (core.RoomStatus, bool) {
	s := b.status.Load()
	if s == nil {
		return core.RoomStatus{}, false
	}
	return *s, true
}

// Run keeps the room joined until ctx is canceled, reconnecting with backoff whenever the connection is lost.
func (b *Bridge) Run(ctx context.Context) error {
	rejoin := false
	attempt := 0

	for {
		joined, err := b.session(ctx, rejoin)
		b.setState(Disconnected)

		if ctx.Err() != nil {
			b.logger.Info("left room")
			return nil
		}

		if joined {
			rejoin = true
			attempt = 0
		}

		reconnects.Inc()
		b.logger.Warn("live channel lost, reconnecting", "error", err, "attempt", attempt)

		if err := b.backoff.Wait(ctx, attempt); err != nil {
			return nil
		}
		attempt++
	}
}

// MarkLoaded replays buffered events and switches the bridge to applying events directly.
func (b *Bridge) MarkLoaded() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loaded {
		return
	}

	b.loaded = true
	for _, event := range b.pending {
		b.apply(event)
	}
	b.pending = nil
}

// Emit sends a client to server event. It fails with core.ErrNotJoined unless the room is joined.
func (b *Bridge) Emit(ctx context.Context, event string, payload any) error {
	b.connMu.RLock()
	conn := b.conn
	b.connMu.RUnlock()

	if conn == nil || b.State() != Joined {
		return core.Transient(fmt.Errorf("%w: %s", core.ErrNotJoined, b.roomID))
	}

	env, err := Encode(b.roomID, event, payload)
	if err != nil {
		return err
	}

	return core.Transient(conn.Emit(ctx, env))
}

func (b *Bridge) session(ctx context.Context, rejoin bool) (bool, error) {
	b.setState(Connecting)

	conn, err := b.dialer.Dial(ctx, b.roomID)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	join, err := Encode(b.roomID, core.EventJoinGroup, core.JoinPayload{RoomID: b.roomID})
	if err != nil {
		return false, err
	}
	if err := conn.Emit(ctx, join); err != nil {
		return false, err
	}

	b.setConn(conn)
	defer b.setConn(nil)

	b.setState(Joined)
	b.logger.Info("joined room", "rejoin", rejoin)

	if rejoin && b.onReconnect != nil {
		go b.onReconnect(ctx)
	}

	err = b.consume(ctx, conn)

	if ctx.Err() != nil {
		b.leave(conn)
	}

	return true, err
}

func (b *Bridge) leave(conn core.Conn) {
	// A separate context because the original one is canceled on teardown.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	env, err := Encode(b.roomID, core.EventLeaveGroup, core.JoinPayload{RoomID: b.roomID})
	if err == nil {
		err = conn.Emit(ctx, env)
	}
	if err != nil {
		b.logger.Debug("leaving room", "error", err)
	}
}

// consume runs inbound frames through decode, filter and apply stages until the connection fails.
func (b *Bridge) consume(ctx context.Context, conn core.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := async.Generator(ctx, func(ctx context.Context, yield async.Yielder[core.Envelope]) error {
		for {
			env, err := conn.Receive(ctx)
			if err != nil {
				if errors.Is(err, core.ErrInvalidEvent) {
					b.logger.Warn("skipping malformed frame", "error", err)
					continue
				}
				return err
			}
			if !yield(env) {
				return nil
			}
		}
	})

	out := pips.New[async.Result[core.Envelope], core.Event]().
		Then(apply.Map(func(_ context.Context, frame async.Result[core.Envelope]) (core.Envelope, error) {
			return frame.Unpack()
		})).
		Then(apply.Map(b.decode)).
		Then(apply.Filter(func(_ context.Context, event core.Event) (bool, error) {
			return event != nil, nil
		})).
		Then(apply.Each(b.handle)).
		Run(ctx, frames)

	return pips.Wait(ctx, out)
}

// decode returns a nil event for frames that must be dropped.
func (b *Bridge) decode(_ context.Context, env core.Envelope) (core.Event, error) {
	if env.Room != "" && env.Room != b.roomID {
		eventsProcessed.WithLabelValues(env.Event, "stale").Inc()
		b.logger.Debug("dropping event", "error", core.ErrStaleEvent, "event", env.Event, "event_room", env.Room)
		return nil, nil
	}

	event, err := Decode(env)
	if err != nil {
		eventsProcessed.WithLabelValues(env.Event, "invalid").Inc()
		b.logger.Warn("dropping event", "error", err, "event", env.Event)
		return nil, nil
	}

	return event, nil
}

func (b *Bridge) handle(_ context.Context, event core.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.loaded {
		b.pending = append(b.pending, event)
		return nil
	}

	b.apply(event)
	return nil
}

// apply is called with b.mu held.
func (b *Bridge) apply(event core.Event) {
	status := "applied"

	switch e := event.(type) {
	case core.MessageReceived:
		status = b.applyRecord(core.KindMessage, e.Record)

	case core.AnnouncementCreated:
		status = b.applyRecord(core.KindAnnouncement, e.Record)

	case core.ItemDeleted:
		b.store.Tombstone(e.ID)

	case core.ReactionsUpdated:
		if !b.store.SetReactions(e.ID, e.Reactions) {
			status = "unknown"
			b.logger.Debug("reactions for unknown item", "error", core.ErrUnknownItem, "id", e.ID)
		}

	case core.StatusUpdated:
		s := e.Status
		b.status.Store(&s)
		if b.onStatus != nil {
			b.onStatus(s)
		}
	}

	eventsProcessed.WithLabelValues(event.EventName(), status).Inc()
}

func (b *Bridge) applyRecord(kind core.Kind, record core.RawRecord) string {
	if record.RoomID != "" && record.RoomID != b.roomID {
		b.logger.Debug("dropping record", "error", core.ErrStaleEvent, "record_room", record.RoomID)
		return "stale"
	}

	item, err := b.collator.Normalize(kind, record)
	if err != nil {
		b.logger.Warn("dropping record", "error", err)
		return "invalid"
	}
	if item.RoomID == "" {
		item.RoomID = b.roomID
	}

	return string(b.store.Merge(item))
}

func (b *Bridge) setConn(conn core.Conn) {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	b.conn = conn
}

func (b *Bridge) setState(s State) {
	if State(b.state.Swap(int32(s))) == s {
		return
	}
	stateTransitions.WithLabelValues(s.String()).Inc()
	b.logger.Debug("state changed", "state", s)
}
