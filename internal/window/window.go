package window

import (
	"sync"
	"time"
)

// Window counts timestamped hits inside a sliding duration. Entries older
// than the window are pruned lazily on every Add and Count.
type Window struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func New(window time.Duration) *Window {
	return &Window{window: window}
}

func (w *Window) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	w.hits = append(w.hits, now)
	return len(w.hits)
}

func (w *Window) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	return len(w.hits)
}

// Resize changes the window duration; existing hits are re-pruned on the
// next Add or Count.
func (w *Window) Resize(window time.Duration) {
	if window <= 0 {
		return
	}
	w.mu.Lock()
	w.window = window
	w.mu.Unlock()
}

func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	w.hits = w.hits[idx:]
}

// Keyed is a collection of windows sharing one default duration, keyed by
// an arbitrary string (guild, guild:kind, guild:user).
type Keyed struct {
	mu      sync.Mutex
	window  time.Duration
	windows map[string]*Window
}

func NewKeyed(window time.Duration) *Keyed {
	if window <= 0 {
		window = 10 * time.Second
	}
	return &Keyed{window: window, windows: make(map[string]*Window)}
}

func (k *Keyed) Add(key string, now time.Time) int {
	return k.get(key, k.window).Add(now)
}

// AddSized records a hit in the key's window resized to the given
// duration. Used where the window length is per-guild configuration.
func (k *Keyed) AddSized(key string, window time.Duration, now time.Time) int {
	w := k.get(key, window)
	w.Resize(window)
	return w.Add(now)
}

func (k *Keyed) Count(key string, now time.Time) int {
	return k.get(key, k.window).Count(now)
}

func (k *Keyed) get(key string, window time.Duration) *Window {
	k.mu.Lock()
	defer k.mu.Unlock()
	w := k.windows[key]
	if w == nil {
		if window <= 0 {
			window = k.window
		}
		w = New(window)
		k.windows[key] = w
	}
	return w
}
