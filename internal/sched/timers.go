// Package sched provides the timer bookkeeping behind transient UI state:
// keyed cancellable tasks, flash highlights with a debounced clear, and
// countdowns that fire once when a deadline passes.
package sched

import (
	"sync"
	"time"
)

// TimerSet tracks at most one pending task per key. Scheduling a key that
// already has a pending task cancels the old one first, so the newest
// schedule always wins.
type TimerSet struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTimerSet() *TimerSet {
	return &TimerSet{timers: make(map[string]*time.Timer)}
}

// Schedule runs fn after d unless the key is cancelled or rescheduled first.
func (ts *TimerSet) Schedule(key string, d time.Duration, fn func()) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if prev, ok := ts.timers[key]; ok {
		prev.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		ts.mu.Lock()
		// A reschedule may have replaced this timer between firing and
		// acquiring the lock; only the current owner runs.
		if ts.timers[key] == timer {
			delete(ts.timers, key)
			ts.mu.Unlock()
			fn()
			return
		}
		ts.mu.Unlock()
	})
	ts.timers[key] = timer
}

// Cancel stops the pending task for key, reporting whether one was pending.
func (ts *TimerSet) Cancel(key string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	timer, ok := ts.timers[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(ts.timers, key)
	return true
}

// CancelAll stops every pending task.
func (ts *TimerSet) CancelAll() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for key, timer := range ts.timers {
		timer.Stop()
		delete(ts.timers, key)
	}
}

// Pending reports whether key has a scheduled task.
func (ts *TimerSet) Pending(key string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	_, ok := ts.timers[key]
	return ok
}
