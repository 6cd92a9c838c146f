// Package clock abstracts time so the replay scheduler runs on both real and
// virtual time. Replay code never calls time.Now or time.AfterFunc directly.
package clock

import "time"

// Clock is the time source used by the replay scheduler.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration
	// AfterFunc calls f in its own goroutine (Real) or inside Advance
	// (Virtual) once d has elapsed. The returned Timer cancels the call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call from firing. It reports whether the call was
	// still pending.
	Stop() bool
}

// Real delegates to the standard time package.
type Real struct{}

// NewReal returns a wall clock.
func NewReal() *Real {
	return &Real{}
}

func (c *Real) Now() time.Time {
	return time.Now()
}

func (c *Real) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (c *Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
