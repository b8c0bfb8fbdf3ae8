// Package media holds the reels and posts feeds.
package media

import (
	"slices"
	"sync"

	"github.com/samber/lo"

	"roomfeed/internal/core"
)

// Store keeps media items in the order they were loaded. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	kind  core.MediaKind
	order []string
	byID  map[string]*core.MediaItem

	changes chan struct{}
}

func New(kind core.MediaKind) *Store {
	return &Store{
		kind:    kind,
		byID:    map[string]*core.MediaItem{},
		changes: make(chan struct{}, 1),
	}
}

func (s *Store) Kind() core.MediaKind {
	return s.kind
}

// Changes fires after every modification. Notifications coalesce.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Load replaces the whole feed. Duplicate ids keep their first position and last content.
func (s *Store) Load(items []core.MediaItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = s.order[:0]
	s.byID = make(map[string]*core.MediaItem, len(items))

	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, ok := s.byID[item.ID]; !ok {
			s.order = append(s.order, item.ID)
		}
		s.byID[item.ID] = s.normalize(item)
	}

	s.notify()
}

// Put inserts or replaces an item. New items are appended.
func (s *Store) Put(item core.MediaItem) {
	if item.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[item.ID]; !ok {
		s.order = append(s.order, item.ID)
	}
	s.byID[item.ID] = s.normalize(item)

	s.notify()
}

func (s *Store) Get(id string) (core.MediaItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.byID[id]
	if !ok {
		return core.MediaItem{}, false
	}
	return item.Clone(), true
}

// SetLikes replaces the like set in full. Returns false for unknown ids.
func (s *Store) SetLikes(id string, likes []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.byID[id]
	if !ok {
		return false
	}
	item.Likes = lo.Uniq(likes)
	s.notify()

	return true
}

// SetComments replaces the comment list in full. Returns false for unknown ids.
func (s *Store) SetComments(id string, comments []core.Comment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.byID[id]
	if !ok {
		return false
	}
	item.Comments = slices.Clone(comments)
	s.notify()

	return true
}

// Items returns copies in load order.
func (s *Store) Items() []core.MediaItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Map(s.order, func(id string, _ int) core.MediaItem {
		return s.byID[id].Clone()
	})
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.order)
}

func (s *Store) normalize(item core.MediaItem) *core.MediaItem {
	c := item.Clone()
	if c.Kind == "" {
		c.Kind = s.kind
	}
	c.Likes = lo.Uniq(c.Likes)
	return &c
}

func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
