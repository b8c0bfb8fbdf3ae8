// Package activation keeps exactly one item of a paged media carousel active.
package activation

import (
	"log/slog"
	"sync"

	"roomfeed/internal/core"
)

const DefaultThreshold = 0.8

const none = -1

// Visibility is the fraction of an item currently on screen.
type Visibility struct {
	Index    int
	Fraction float64
}

type Option func(*Window)

// WithThreshold sets the minimal visible fraction for an item to become active.
func WithThreshold(threshold float64) Option {
	return func(w *Window) {
		w.threshold = threshold
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Window) {
		w.logger = logger
	}
}

// Window drives a core.Player. Player calls are made while holding the window lock, so they are
// strictly ordered: the previous item is always deactivated before the next one is activated.
// The player must not call back into the window.
type Window struct {
	mu sync.Mutex

	player    core.Player
	threshold float64
	logger    *slog.Logger

	count   int
	active  int
	playing bool
	closed  bool
}

// New creates a window over count items. A count of 0 leaves the index range unchecked.
func New(player core.Player, count int, opts ...Option) *Window {
	w := &Window{
		player:    player,
		threshold: DefaultThreshold,
		logger:    slog.Default(),
		count:     count,
		active:    none,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "activation.Window")

	return w
}

// Active returns the active index.
func (w *Window) Active() (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.active, w.active != none
}

func (w *Window) Playing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.active != none && w.playing
}

// Visible makes index the active item.
func (w *Window) Visible(index int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.activate(index)
}

// Viewability activates the most visible item at or above the threshold.
// When no item qualifies the active item is kept.
func (w *Window) Viewability(items []Visibility) {
	best := Visibility{Index: none}
	for _, item := range items {
		if item.Fraction >= w.threshold && item.Fraction > best.Fraction {
			best = item
		}
	}
	if best.Index == none {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.activate(best.Index)
}

// Toggle pauses or resumes the active item without changing which item is active.
func (w *Window) Toggle() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.active == none {
		return
	}

	w.playing = !w.playing
	w.player.SetPlaying(w.active, w.playing)
}

// SetCount updates the number of items. An active index past the end moves to the last item.
func (w *Window) SetCount(count int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count = count
	if w.closed || w.active == none || w.active < count {
		return
	}

	w.deactivate()
	if count > 0 {
		w.activate(count - 1)
	}
}

// Close deactivates the active item. The window ignores all signals afterwards.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.deactivate()
	w.closed = true
}

func (w *Window) activate(index int) {
	if w.closed || index < 0 || (w.count > 0 && index >= w.count) {
		return
	}
	if index == w.active {
		return
	}

	w.deactivate()

	w.active = index
	w.playing = true
	w.player.Activate(index)

	w.logger.Debug("item activated", "index", index)
}

func (w *Window) deactivate() {
	if w.active == none {
		return
	}

	w.player.Deactivate(w.active)
	w.active = none
	w.playing = false
}
