package sched

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerSetRescheduleReplacesPending(t *testing.T) {
	ts := NewTimerSet()

	var first, second atomic.Int32
	ts.Schedule("k", 20*time.Millisecond, func() { first.Add(1) })
	ts.Schedule("k", 20*time.Millisecond, func() { second.Add(1) })

	require.Eventually(t, func() bool {
		return second.Load() == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, first.Load())
	require.False(t, ts.Pending("k"))
}

func TestTimerSetCancel(t *testing.T) {
	ts := NewTimerSet()

	var fired atomic.Int32
	ts.Schedule("k", 20*time.Millisecond, func() { fired.Add(1) })
	require.True(t, ts.Cancel("k"))
	require.False(t, ts.Cancel("k"))

	time.Sleep(60 * time.Millisecond)
	require.Zero(t, fired.Load())
}

func TestTimerSetCancelAll(t *testing.T) {
	ts := NewTimerSet()

	var fired atomic.Int32
	for _, key := range []string{"a", "b", "c"} {
		ts.Schedule(key, 20*time.Millisecond, func() { fired.Add(1) })
	}
	ts.CancelAll()

	time.Sleep(60 * time.Millisecond)
	require.Zero(t, fired.Load())
}

func TestFlashRetriggerExtendsHighlight(t *testing.T) {
	f := NewFlash(60*time.Millisecond, nil)

	f.Trigger("t1")
	require.True(t, f.Active("t1"))

	// Re-trigger halfway through the window. The highlight must survive
	// past the first window's end and clear one full window after the
	// second trigger.
	time.Sleep(35 * time.Millisecond)
	f.Trigger("t1")

	time.Sleep(35 * time.Millisecond)
	require.True(t, f.Active("t1"))

	require.Eventually(t, func() bool {
		return !f.Active("t1")
	}, time.Second, 5*time.Millisecond)
}

func TestFlashIndependentIDs(t *testing.T) {
	f := NewFlash(40*time.Millisecond, nil)

	f.Trigger("a")
	f.Trigger("b")
	require.True(t, f.Active("a"))
	require.True(t, f.Active("b"))
	require.False(t, f.Active("c"))

	require.Eventually(t, func() bool {
		return !f.Active("a") && !f.Active("b")
	}, time.Second, 5*time.Millisecond)
}

func TestFlashClear(t *testing.T) {
	var mu sync.Mutex
	changes := 0
	f := NewFlash(time.Minute, func() {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	f.Trigger("a")
	f.Clear()
	require.False(t, f.Active("a"))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, changes)
}

func TestCountdownExpiresOnce(t *testing.T) {
	var ticks, expiries atomic.Int32
	c := StartCountdown(CountdownOptions{
		Deadline: time.Now().Add(50 * time.Millisecond),
		Interval: 10 * time.Millisecond,
		OnTick:   func(time.Duration) { ticks.Add(1) },
		OnExpire: func() { expiries.Add(1) },
	})

	require.Eventually(t, c.Expired, time.Second, 5*time.Millisecond)
	require.EqualValues(t, 1, expiries.Load())
	require.GreaterOrEqual(t, ticks.Load(), int32(1))
	require.Zero(t, c.Remaining())

	// Stop after expiry is a no-op.
	c.Stop()
	require.EqualValues(t, 1, expiries.Load())
}

func TestCountdownStopPreventsExpiry(t *testing.T) {
	var expiries atomic.Int32
	c := StartCountdown(CountdownOptions{
		Deadline: time.Now().Add(30 * time.Millisecond),
		Interval: 10 * time.Millisecond,
		OnExpire: func() { expiries.Add(1) },
	})
	c.Stop()

	time.Sleep(60 * time.Millisecond)
	require.Zero(t, expiries.Load())
	require.False(t, c.Expired())
}

func TestCountdownRemainingClampedAtZero(t *testing.T) {
	c := StartCountdown(CountdownOptions{
		Deadline: time.Now().Add(-time.Minute),
		Interval: 10 * time.Millisecond,
	})
	defer c.Stop()
	require.Zero(t, c.Remaining())
}
