// Package timer implements the per-step countdown clock and the watcher that
// nudges the cook when a session sits idle.
package timer

import (
	"fmt"
	"sync"
	"time"
)

// ClockOption configures a Clock.
type ClockOption func(*Clock)

// WithTickInterval sets the real time between two one-second decrements.
// Tests shrink it to run a countdown quickly.
func WithTickInterval(d time.Duration) ClockOption {
	return func(c *Clock) {
		if d > 0 {
			c.interval = d
		}
	}
}

// OnTick registers a callback invoked after every decrement with the new
// remaining seconds. It runs on the tick goroutine, outside the clock lock.
func OnTick(fn func(remaining int)) ClockOption {
	return func(c *Clock) {
		c.onTick = fn
	}
}

// OnExpire registers the callback pushed once when the countdown reaches
// zero. It runs on the tick goroutine, outside the clock lock.
func OnExpire(fn func()) ClockOption {
	return func(c *Clock) {
		c.onExpire = fn
	}
}

// Clock counts one step's duration down in whole seconds. At most one tick
// source is armed at a time: every Start arms a fresh epoch, and ticks that
// carry an older epoch are dropped.
type Clock struct {
	mu        sync.Mutex
	interval  time.Duration
	remaining int
	armed     bool
	stopped   bool
	epoch     uint64
	halt      chan struct{}

	onTick   func(int)
	onExpire func()
}

// NewClock creates a paused clock holding seconds.
func NewClock(seconds int, opts ...ClockOption) *Clock {
	c := &Clock{
		interval:  time.Second,
		remaining: seconds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start arms the tick source. It returns false without doing anything when
// the clock is already running, has been stopped, or has nothing left.
func (c *Clock) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.armed || c.stopped || c.remaining <= 0 {
		return false
	}
	c.epoch++
	c.armed = true
	c.halt = make(chan struct{})
	go c.run(c.epoch, c.halt)
	return true
}

// Pause disarms the tick source. Remaining time is preserved exactly.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarm()
}

// Stop disarms the clock for good. Used when the step is left.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarm()
	c.stopped = true
}

// Remaining returns the seconds left on the countdown.
func (c *Clock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether a tick source is armed.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// disarm must be called with c.mu held.
func (c *Clock) disarm() {
	if !c.armed {
		return
	}
	c.armed = false
	close(c.halt)
	c.halt = nil
}

func (c *Clock) run(epoch uint64, halt <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-halt:
			return
		case <-ticker.C:
			if !c.tick(epoch) {
				return
			}
		}
	}
}

// tick applies one decrement for the given epoch. It reports whether the
// tick source that delivered it should keep going.
func (c *Clock) tick(epoch uint64) bool {
	c.mu.Lock()
	if !c.armed || epoch != c.epoch {
		c.mu.Unlock()
		return false
	}
	c.remaining--
	remaining := c.remaining
	expired := remaining <= 0
	if expired {
		c.remaining = 0
		remaining = 0
		c.armed = false
		c.halt = nil
	}
	onTick, onExpire := c.onTick, c.onExpire
	c.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if expired && onExpire != nil {
		onExpire()
	}
	return !expired
}

// FormatClock renders seconds as mm:ss for status displays.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// FormatSpoken returns a human-friendly spoken duration. Rounds to the
// nearest minute once there's at least 1 minute left.
func FormatSpoken(seconds int) string {
	if seconds < 60 {
		if seconds == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", seconds)
	}
	m := (seconds + 30) / 60
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
