package sched

import (
	"sync"
	"time"
)

// Countdown ticks down to a deadline and fires an expiry callback exactly
// once when the deadline passes. Remaining never goes negative and a
// stopped countdown never fires.
type Countdown struct {
	deadline time.Time
	interval time.Duration
	onTick   func(remaining time.Duration)
	onExpire func()

	mu      sync.Mutex
	stopped bool
	expired bool
	done    chan struct{}
}

// CountdownOptions configures a Countdown.
type CountdownOptions struct {
	Deadline time.Time
	// Interval between ticks. Zero means 1s.
	Interval time.Duration
	// OnTick receives the remaining time on every tick, clamped at zero.
	OnTick func(remaining time.Duration)
	// OnExpire fires once when the deadline passes.
	OnExpire func()
}

// StartCountdown begins ticking immediately. A deadline already in the past
// expires on the first tick.
func StartCountdown(opts CountdownOptions) *Countdown {
	interval := opts.Interval
	if interval == 0 {
		interval = time.Second
	}
	c := &Countdown{
		deadline: opts.Deadline,
		interval: interval,
		onTick:   opts.OnTick,
		onExpire: opts.OnExpire,
		done:     make(chan struct{}),
	}
	go c.run()
	return c
}

// Remaining returns the time left, clamped at zero.
func (c *Countdown) Remaining() time.Duration {
	remaining := time.Until(c.deadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the deadline has passed and OnExpire has fired.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// Stop halts ticking. Stopping after expiry or a prior Stop is a no-op.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.done)
}

func (c *Countdown) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			remaining := c.Remaining()
			if c.onTick != nil {
				c.onTick(remaining)
			}
			if remaining == 0 {
				c.expire()
				return
			}
		}
	}
}

func (c *Countdown) expire() {
	c.mu.Lock()
	if c.stopped || c.expired {
		c.mu.Unlock()
		return
	}
	c.expired = true
	c.stopped = true
	close(c.done)
	c.mu.Unlock()

	if c.onExpire != nil {
		c.onExpire()
	}
}
