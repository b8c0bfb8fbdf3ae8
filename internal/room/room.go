// Package room ties a room's feed store, live bridge and mutations together and owns their lifetime.
package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"roomfeed/internal/core"
	"roomfeed/internal/feed"
	"roomfeed/internal/identity"
	"roomfeed/internal/live"
	"roomfeed/internal/mutation"
	"roomfeed/pkg/async"
)

const snapshotTimeout = 5 * time.Second

type Config struct {
	UserID   string
	Location *time.Location

	Live  *live.Manager
	Feed  core.FeedAPI
	Cache core.SnapshotCache

	Votes   core.VoteAPI
	Deletes core.DeleteAPI
	Media   core.MediaAPI

	Collator *identity.Collator
	Logger   *slog.Logger
}

// Controller opens rooms. It is shared by the whole app.
type Controller struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Collator == nil {
		cfg.Collator = identity.New(cfg.Logger)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	return &Controller{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "room.Controller"),
	}
}

// Open joins the room and starts loading its history. The room renders the cached snapshot, if any,
// until the load completes. Opening a room that is already open fails with core.ErrRoomAlreadyOpen.
func (c *Controller) Open(ctx context.Context, roomID string) (*Room, error) {
	ctx, cancel := context.WithCancel(ctx)

	r := &Room{
		id:     roomID,
		ctl:    c,
		logger: c.logger.With("room", roomID),
		store:  feed.New(roomID, c.cfg.Location),
		cancel: cancel,
		loaded: make(chan struct{}),
	}

	bridge, err := c.cfg.Live.Open(ctx, roomID, r.store, live.WithReconnectHandler(r.catchUp))
	if err != nil {
		cancel()
		return nil, err
	}
	r.bridge = bridge

	r.mutations = mutation.New(mutation.Config{
		UserID:   c.cfg.UserID,
		Feed:     r.store,
		Collator: c.cfg.Collator,
		Emitter:  bridge,
		Votes:    c.cfg.Votes,
		Deletes:  c.cfg.Deletes,
		Media:    c.cfg.Media,
		Logger:   c.cfg.Logger,
	})

	r.prime(ctx)
	r.load(ctx)

	return r, nil
}

// Room is one open room.
type Room struct {
	id     string
	ctl    *Controller
	logger *slog.Logger

	store     *feed.Store
	bridge    *live.Bridge
	mutations *mutation.Manager

	cancel context.CancelFunc

	// mu guards generation and closed. Results of fetches started under an older generation are stale.
	mu         sync.Mutex
	generation uint64
	closed     bool

	loadOnce sync.Once
	loaded   chan struct{}
	loadErr  error

	closeOnce sync.Once
	closeErr  error
}

func (r *Room) ID() string {
	return r.id
}

func (r *Room) Store() *feed.Store {
	return r.store
}

func (r *Room) Bridge() *live.Bridge {
	return r.bridge
}

func (r *Room) Mutations() *mutation.Manager {
	return r.mutations
}

// Status is the last room status pushed by the server.
func (r *Room) Status() (core.RoomStatus, bool) {
	return r.bridge.Status()
}

// Wait blocks until the initial load completes and returns its error.
func (r *Room) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.loaded:
		return r.loadErr
	}
}

// Refresh refetches the history and replaces the sequence with it.
func (r *Room) Refresh(ctx context.Context) error {
	gen, err := r.current()
	if err != nil {
		return err
	}

	items, err := r.fetch(ctx)
	if err != nil {
		return err
	}

	return r.commit(gen, func() {
		r.store.LoadInitial(items)
	})
}

// Close cancels in flight fetches, disconnects the bridge and saves a snapshot of the feed.
// Fetch results arriving afterwards are discarded.
func (r *Room) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.generation++
		r.mu.Unlock()

		r.cancel()
		r.finishLoad(core.ErrRoomClosed)

		err := r.ctl.cfg.Live.Close(r.id)
		if errors.Is(err, context.Canceled) {
			err = nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()

		r.closeErr = errors.Join(err, r.save(ctx))
	})

	return r.closeErr
}

func (r *Room) current() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, fmt.Errorf("%w: %s", core.ErrRoomClosed, r.id)
	}
	return r.generation, nil
}

// commit runs apply unless the generation moved on since gen was taken.
func (r *Room) commit(gen uint64, apply func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.generation != gen {
		r.logger.Debug("discarding fetch result", "error", core.ErrStaleEvent, "generation", gen)
		return core.ErrStaleEvent
	}

	apply()
	return nil
}

func (r *Room) prime(ctx context.Context) {
	if r.ctl.cfg.Cache == nil {
		return
	}

	items, err := r.ctl.cfg.Cache.Load(ctx, r.id)
	if err != nil {
		r.logger.Warn("failed to load snapshot", "error", err)
		return
	}
	if len(items) > 0 {
		r.store.LoadInitial(items)
		r.logger.Debug("snapshot restored", "items", len(items))
	}
}

func (r *Room) load(ctx context.Context) {
	gen, err := r.current()
	if err != nil {
		r.finishLoad(err)
		return
	}

	job := async.Job(ctx, r.fetch)

	go func() {
		items, err := job.Wait()
		if err != nil {
			if r.commit(gen, r.bridge.MarkLoaded) == nil {
				r.logger.Error("failed to load history", "error", err)
				r.finishLoad(err)
			}
			return
		}

		err = r.commit(gen, func() {
			r.store.LoadInitial(items)
			r.bridge.MarkLoaded()
		})
		if err != nil {
			return
		}

		r.logger.Info("history loaded", "items", len(items))
		r.finishLoad(nil)

		if err := r.save(ctx); err != nil {
			r.logger.Warn("failed to save snapshot", "error", err)
		}
	}()
}

// catchUp merges the history after a rejoin, so nothing pushed while disconnected is missing.
func (r *Room) catchUp(ctx context.Context) {
	gen, err := r.current()
	if err != nil {
		return
	}

	items, err := r.fetch(ctx)
	if err != nil {
		r.logger.Warn("catch up failed", "error", err)
		return
	}

	if r.commit(gen, func() { r.store.MergeAll(items) }) == nil {
		r.logger.Debug("caught up", "items", len(items))
	}
}

func (r *Room) fetch(ctx context.Context) ([]core.FeedItem, error) {
	messages := async.Job(ctx, func(ctx context.Context) ([]core.RawRecord, error) {
		return r.ctl.cfg.Feed.Messages(ctx, r.id)
	})
	announcements := async.Job(ctx, func(ctx context.Context) ([]core.RawRecord, error) {
		return r.ctl.cfg.Feed.Announcements(ctx, r.id)
	})

	rawMessages, errMessages := messages.Wait()
	rawAnnouncements, errAnnouncements := announcements.Wait()
	if err := errors.Join(errMessages, errAnnouncements); err != nil {
		return nil, err
	}

	collator := r.ctl.cfg.Collator
	items := append(
		collator.NormalizeAll(core.KindMessage, rawMessages),
		collator.NormalizeAll(core.KindAnnouncement, rawAnnouncements)...,
	)

	return lo.Map(items, func(item core.FeedItem, _ int) core.FeedItem {
		if item.RoomID == "" {
			item.RoomID = r.id
		}
		return item
	}), nil
}

func (r *Room) save(ctx context.Context) error {
	if r.ctl.cfg.Cache == nil {
		return nil
	}

	items := lo.Filter(r.store.Items(), func(item core.FeedItem, _ int) bool {
		return !item.IsDraft()
	})
	if len(items) == 0 {
		return nil
	}

	return r.ctl.cfg.Cache.Save(ctx, r.id, items)
}

func (r *Room) finishLoad(err error) {
	r.loadOnce.Do(func() {
		r.loadErr = err
		close(r.loaded)
	})
}
