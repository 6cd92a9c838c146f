package clock

import (
	"sync"
	"time"
)

// Virtual is a controllable clock for deterministic replay tests.
// Time only moves on Advance or Set, and due callbacks run synchronously on
// the caller's goroutine, in deadline order, with the clock unlocked so they
// may schedule further timers.
//
// Thread-safe for concurrent use.
type Virtual struct {
	mu      sync.Mutex
	current time.Time
	seq     uint64
	timers  []*virtualTimer
}

type virtualTimer struct {
	clock    *Virtual
	deadline time.Time
	seq      uint64
	f        func()
}

// NewVirtual creates a Virtual clock starting at the given time.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{current: start}
}

// Now returns the current virtual time.
func (c *Virtual) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Since returns the virtual duration elapsed since t.
func (c *Virtual) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Sub(t)
}

// AfterFunc registers f to run once the clock reaches now+d. A non-positive d
// still waits for the next Advance or Set.
func (c *Virtual) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &virtualTimer{
		clock:    c,
		deadline: c.current.Add(max(d, 0)),
		seq:      c.seq,
		f:        f,
	}
	c.timers = append(c.timers, t)
	return t
}

// Stop removes the timer if it has not fired yet.
func (t *virtualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remove(t)
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *Virtual) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance moves the virtual clock forward by d, firing every timer whose
// deadline is reached, including timers scheduled by callbacks along the way.
// Panics if d is negative.
func (c *Virtual) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	c.runUntil(target)
}

// Set moves the virtual clock to an exact time, firing due timers.
// Panics if t is before the current time.
func (c *Virtual) Set(t time.Time) {
	c.mu.Lock()
	if t.Before(c.current) {
		c.mu.Unlock()
		panic("clock: cannot set time to the past")
	}
	c.mu.Unlock()

	c.runUntil(t)
}

func (c *Virtual) runUntil(target time.Time) {
	for {
		c.mu.Lock()
		next := c.earliest()
		if next == nil || next.deadline.After(target) {
			if target.After(c.current) {
				c.current = target
			}
			c.mu.Unlock()
			return
		}
		c.remove(next)
		if next.deadline.After(c.current) {
			c.current = next.deadline
		}
		c.mu.Unlock()

		next.f()
	}
}

// earliest returns the due-first timer, ties broken by registration order.
// Must be called with c.mu held.
func (c *Virtual) earliest() *virtualTimer {
	var best *virtualTimer
	for _, t := range c.timers {
		if best == nil || t.deadline.Before(best.deadline) ||
			(t.deadline.Equal(best.deadline) && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

// remove must be called with c.mu held.
func (c *Virtual) remove(t *virtualTimer) bool {
	for i, p := range c.timers {
		if p == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}
