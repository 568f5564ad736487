package sched

import (
	"sync"
	"time"
)

// DefaultFlashWindow is how long an entity stays highlighted after a
// remote change before the highlight clears.
const DefaultFlashWindow = 1500 * time.Millisecond

// Flash tracks which entity IDs are currently highlighted. Re-triggering an
// active ID restarts its clear timer rather than stacking a second one, so
// a burst of updates produces one continuous highlight ending one window
// after the last update.
type Flash struct {
	window   time.Duration
	timers   *TimerSet
	onChange func()

	mu     sync.Mutex
	active map[string]struct{}
}

// NewFlash creates a tracker with the given clear window. A zero window
// uses DefaultFlashWindow. onChange, if non-nil, fires after every state
// transition.
func NewFlash(window time.Duration, onChange func()) *Flash {
	if window == 0 {
		window = DefaultFlashWindow
	}
	return &Flash{
		window:   window,
		timers:   NewTimerSet(),
		onChange: onChange,
		active:   make(map[string]struct{}),
	}
}

// Trigger marks id as highlighted and (re)starts its clear timer.
func (f *Flash) Trigger(id string) {
	f.mu.Lock()
	f.active[id] = struct{}{}
	f.mu.Unlock()

	f.timers.Schedule(id, f.window, func() {
		f.mu.Lock()
		delete(f.active, id)
		f.mu.Unlock()
		f.notify()
	})
	f.notify()
}

// Active reports whether id is currently highlighted.
func (f *Flash) Active(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.active[id]
	return ok
}

// Clear drops every highlight and cancels all pending clears.
func (f *Flash) Clear() {
	f.timers.CancelAll()
	f.mu.Lock()
	changed := len(f.active) > 0
	f.active = make(map[string]struct{})
	f.mu.Unlock()
	if changed {
		f.notify()
	}
}

func (f *Flash) notify() {
	if f.onChange != nil {
		f.onChange()
	}
}
