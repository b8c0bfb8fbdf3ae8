package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"

	"roomfeed/internal/core"
	"roomfeed/internal/feed"
	"roomfeed/internal/identity"
	"roomfeed/pkg/async"
)

type openRoom struct {
	bridge *Bridge
	job    *async.JobHandle[struct{}]
}

// Manager owns the transport dialer and the running bridges, at most one per room.
type Manager struct {
	logger   *slog.Logger
	dialer   core.Dialer
	collator *identity.Collator
	opts     []Option

	mu    sync.Mutex
	rooms map[string]*openRoom
}

// NewManager creates a manager. opts are applied to every bridge it opens, before per room options.
func NewManager(dialer core.Dialer, collator *identity.Collator, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:   logger,
		dialer:   dialer,
		collator: collator,
		opts:     opts,
		rooms:    map[string]*openRoom{},
	}
}

// Open starts a bridge feeding store. The bridge runs until Close or until ctx is canceled.
func (m *Manager) Open(ctx context.Context, roomID string, store *feed.Store, opts ...Option) (*Bridge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[roomID]; ok {
		return nil, fmt.Errorf("%w: %s", core.ErrRoomAlreadyOpen, roomID)
	}

	bridge := NewBridge(roomID, m.dialer, store, m.collator, m.logger, append(m.opts[:len(m.opts):len(m.opts)], opts...)...)
	s := &openRoom{bridge: bridge}
	s.job = async.Job(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, bridge.Run(ctx)
	})
	m.rooms[roomID] = s

	go func() {
		<-s.job.Done()

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.rooms[roomID] == s {
			delete(m.rooms, roomID)
		}
	}()

	return bridge, nil
}

// Close disconnects the room's bridge and waits for it to stop. Closing a room that is not open is a no-op.
func (m *Manager) Close(roomID string) error {
	m.mu.Lock()
	s, ok := m.rooms[roomID]
	delete(m.rooms, roomID)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	s.job.Stop()
	_, err := s.job.Wait()
	return err
}

// Rooms returns the ids of the open rooms, sorted.
func (m *Manager) Rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := lo.Keys(m.rooms)
	slices.Sort(ids)

	return ids
}

func (m *Manager) Shutdown(_ context.Context) error {
	var errs []error
	for _, id := range m.Rooms() {
		errs = append(errs, m.Close(id))
	}
	return errors.Join(errs...)
}
