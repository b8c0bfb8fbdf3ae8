// Package feed holds the canonical ordered, deduplicated sequence of items of one room.
package feed

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"

	"roomfeed/internal/core"
)

var (
	mergesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomfeed_store_merges_total",
		Help: "The total number of items merged into feed stores, by outcome",
	}, []string{"outcome"})
)

// Outcome describes what a merge did to the store.
type Outcome string

const (
	Inserted      Outcome = "inserted"
	Updated       Outcome = "updated"
	Unchanged     Outcome = "unchanged"
	DraftReplaced Outcome = "draft_replaced"
	Ignored       Outcome = "ignored"
)

// Store is safe for concurrent use. Every operation is atomic and leaves the sequence sorted by
// (CreatedAt, ID) with unique ids; headers are derived on read.
type Store struct {
	mu sync.RWMutex

	roomID string
	loc    *time.Location

	items      []*core.FeedItem
	byID       map[int64]*core.FeedItem
	tombstones map[int64]struct{}
	confirmed  map[int64]struct{}
	drafts     map[string]int64
	loaded     bool

	rows    []core.FeedItem
	version uint64
	changes chan struct{}
}

// New creates an empty store. Calendar days for date headers are computed in loc, time.Local if nil.
func New(roomID string, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{
		roomID:     roomID,
		loc:        loc,
		byID:       map[int64]*core.FeedItem{},
		tombstones: map[int64]struct{}{},
		confirmed:  map[int64]struct{}{},
		drafts:     map[string]int64{},
		changes:    make(chan struct{}, 1),
	}
}

func (s *Store) RoomID() string {
	return s.roomID
}

// Changes receives a value after one or more modifications. Notifications are coalesced.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Version increases on every modification.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// LoadInitial replaces the sequence with a sorted, deduplicated, tombstone filtered copy of items.
// Pending drafts and reserved tombstone ids are kept. Items merged before the very first load are kept
// as well, so live events racing the initial fetch are not lost.
func (s *Store) LoadInitial(items []core.FeedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var carried []*core.FeedItem
	if s.loaded {
		carried = lo.Filter(s.items, func(item *core.FeedItem, _ int) bool {
			return item.IsDraft()
		})
	} else {
		carried = s.items
	}

	s.items = make([]*core.FeedItem, 0, len(items)+len(carried))
	s.byID = make(map[int64]*core.FeedItem, len(items)+len(carried))

	for _, item := range carried {
		s.byID[item.ID] = item
		s.items = append(s.items, item)
	}

	for _, item := range items {
		if item.Kind == core.KindDateHeader || item.ID <= 0 {
			continue
		}
		if item.Deleted {
			s.reserve(item.ID, true)
		}
		if _, reserved := s.tombstones[item.ID]; reserved {
			if existing, ok := s.byID[item.ID]; ok {
				existing.Deleted = true
			}
			continue
		}
		if existing, ok := s.byID[item.ID]; ok {
			overwriteMutable(existing, item)
			continue
		}
		c := item.Clone()
		c.CorrelationID = ""
		s.byID[c.ID] = &c
		s.items = append(s.items, &c)
	}

	sort.SliceStable(s.items, func(i, j int) bool {
		return less(s.items[i], s.items[j])
	})

	s.loaded = true
	s.touch()
}

// Merge inserts an unknown item at its sorted position or overwrites the mutable fields of a known one.
// Creation time fields of a known item are never changed. Merging the same item twice is a no-op.
func (s *Store) Merge(incoming core.FeedItem) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := s.merge(incoming)
	mergesProcessed.WithLabelValues(string(outcome)).Inc()

	return outcome
}

// MergeAll merges items in order.
func (s *Store) MergeAll(items []core.FeedItem) {
	for _, item := range items {
		s.Merge(item)
	}
}

// InsertDraft places a local, unconfirmed item. The item must carry a negative id.
func (s *Store) InsertDraft(draft core.FeedItem) Outcome {
	if !draft.IsDraft() {
		return s.Merge(draft)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[draft.ID]; ok {
		return Unchanged
	}
	c := draft.Clone()
	s.insert(&c)
	if c.CorrelationID != "" {
		s.drafts[c.CorrelationID] = c.ID
	}
	s.touch()

	return Inserted
}

// ReplaceDraft atomically swaps the draft tempID for its confirmed server copy.
func (s *Store) ReplaceDraft(tempID int64, confirmed core.FeedItem) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := s.replaceDraft(tempID, confirmed)
	mergesProcessed.WithLabelValues(string(outcome)).Inc()

	return outcome
}

// RemoveDraft drops a draft that will never be confirmed.
func (s *Store) RemoveDraft(tempID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.remove(tempID) {
		return false
	}
	s.touch()
	return true
}

// Tombstone applies a server deletion: the item is hidden and its id reserved against re-delivery,
// even if the id was never seen. Overwrite cannot clear it.
func (s *Store) Tombstone(id int64) bool {
	return s.tombstone(id, true)
}

// Hide is the local, optimistic tombstone. Overwrite with Deleted unset clears it again
// unless the server confirmed the deletion in the meantime.
func (s *Store) Hide(id int64) bool {
	return s.tombstone(id, false)
}

func (s *Store) tombstone(id int64, confirmed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, reserved := s.tombstones[id]
	_, wasConfirmed := s.confirmed[id]
	s.reserve(id, confirmed)

	changed := !reserved || (confirmed && !wasConfirmed)
	if item, ok := s.byID[id]; ok && !item.Deleted {
		item.Deleted = true
		changed = true
	}
	if changed {
		s.touch()
	}

	return changed
}

// Overwrite sets the mutable fields of a known item to exactly the given values, including clearing
// a local tombstone. A server tombstone stays. Used to apply and roll back local optimistic state.
// Returns false for unknown ids.
func (s *Store) Overwrite(item core.FeedItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[item.ID]
	if !ok {
		return false
	}

	existing.Reactions = slices.Clone(item.Reactions)
	_, confirmed := s.confirmed[item.ID]
	switch {
	case item.Deleted:
		existing.Deleted = true
		s.reserve(item.ID, false)
	case !confirmed:
		existing.Deleted = false
		delete(s.tombstones, item.ID)
	}
	if existing.Payload.Poll != nil && item.Payload.Poll != nil {
		poll := item.Payload.Poll.Clone()
		existing.Payload.Poll.Options = poll.Options
		existing.Payload.Poll.MyVote = poll.MyVote
	}
	s.touch()

	return true
}

// SetReactions is the authoritative reaction overwrite pushed by the server.
func (s *Store) SetReactions(id int64, reactions []core.Reaction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[id]
	if !ok {
		return false
	}
	existing.Reactions = slices.Clone(reactions)
	s.touch()

	return true
}

// Get returns a copy of the item, tombstoned or not.
func (s *Store) Get(id int64) (core.FeedItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.byID[id]
	if !ok {
		return core.FeedItem{}, false
	}
	return item.Clone(), true
}

// DraftID returns the temporary id of the draft carrying the correlation token.
func (s *Store) DraftID(correlationID string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.drafts[correlationID]
	return id, ok
}

// Items returns the rendered items without date headers.
func (s *Store) Items() []core.FeedItem {
	return lo.Filter(s.Rows(), func(item core.FeedItem, _ int) bool {
		return item.Kind != core.KindDateHeader
	})
}

// Rows returns the rendered sequence: visible items with a date header before the first item of each day.
func (s *Store) Rows() []core.FeedItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rows == nil {
		s.rows = s.render()
	}

	return lo.Map(s.rows, func(item core.FeedItem, _ int) core.FeedItem {
		return item.Clone()
	})
}

// Len is the number of visible items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.CountBy(s.items, s.visible)
}

func (s *Store) merge(incoming core.FeedItem) Outcome {
	if incoming.Kind == core.KindDateHeader || incoming.ID == 0 {
		return Ignored
	}

	if incoming.CorrelationID != "" && !incoming.IsDraft() {
		if tempID, ok := s.drafts[incoming.CorrelationID]; ok {
			return s.replaceDraft(tempID, incoming)
		}
	}

	if existing, ok := s.byID[incoming.ID]; ok {
		if incoming.Deleted {
			s.reserve(existing.ID, true)
		}
		if !overwriteMutable(existing, incoming) {
			return Unchanged
		}
		s.touch()
		return Updated
	}

	c := incoming.Clone()
	if !c.IsDraft() {
		c.CorrelationID = ""
	}
	if c.Deleted {
		s.reserve(c.ID, true)
	}
	if _, reserved := s.tombstones[c.ID]; reserved {
		c.Deleted = true
	}
	s.insert(&c)
	if c.IsDraft() && c.CorrelationID != "" {
		s.drafts[c.CorrelationID] = c.ID
	}
	s.touch()

	return Inserted
}

func (s *Store) replaceDraft(tempID int64, confirmed core.FeedItem) Outcome {
	removed := s.remove(tempID)

	confirmed.CorrelationID = ""
	outcome := s.merge(confirmed)

	if removed {
		s.touch()
		return DraftReplaced
	}
	return outcome
}

func (s *Store) insert(item *core.FeedItem) {
	idx := sort.Search(len(s.items), func(i int) bool {
		return !less(s.items[i], item)
	})
	s.items = slices.Insert(s.items, idx, item)
	s.byID[item.ID] = item
}

func (s *Store) remove(id int64) bool {
	item, ok := s.byID[id]
	if !ok {
		return false
	}

	idx := sort.Search(len(s.items), func(i int) bool {
		return !less(s.items[i], item)
	})
	if idx < len(s.items) && s.items[idx] == item {
		s.items = slices.Delete(s.items, idx, idx+1)
	} else {
		s.items = slices.DeleteFunc(s.items, func(candidate *core.FeedItem) bool {
			return candidate == item
		})
	}

	delete(s.byID, id)
	if item.CorrelationID != "" {
		delete(s.drafts, item.CorrelationID)
	}

	return true
}

func (s *Store) reserve(id int64, confirmed bool) {
	s.tombstones[id] = struct{}{}
	if confirmed {
		s.confirmed[id] = struct{}{}
	}
}

func (s *Store) visible(item *core.FeedItem) bool {
	if item.Deleted {
		return false
	}
	_, reserved := s.tombstones[item.ID]
	return !reserved
}

func (s *Store) touch() {
	s.rows = nil
	s.version++

	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// overwriteMutable copies reactions, the deleted flag and poll aggregates. Deleted never flips back.
// Absent (nil) reactions leave the current ones untouched. Reports whether anything changed.
func overwriteMutable(existing *core.FeedItem, incoming core.FeedItem) bool {
	changed := false

	if incoming.Reactions != nil && !slices.Equal(existing.Reactions, incoming.Reactions) {
		existing.Reactions = slices.Clone(incoming.Reactions)
		changed = true
	}

	if incoming.Deleted && !existing.Deleted {
		existing.Deleted = true
		changed = true
	}

	current, next := existing.Payload.Poll, incoming.Payload.Poll
	if current != nil && next != nil && len(current.Options) == len(next.Options) {
		if !slices.Equal(current.Counts(), next.Counts()) {
			for i := range current.Options {
				current.Options[i].VoteCount = next.Options[i].VoteCount
			}
			changed = true
		}
		if next.MyVote != nil && (current.MyVote == nil || *current.MyVote != *next.MyVote) {
			v := *next.MyVote
			current.MyVote = &v
			changed = true
		}
	}

	return changed
}

func less(a, b *core.FeedItem) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
