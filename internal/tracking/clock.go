package tracking

import "time"

// Clock is the wall clock used for duration accounting
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SessionClock measures active time, excluding paused intervals
type SessionClock struct {
	start       time.Time
	pausedAt    time.Time
	paused      bool
	totalPaused time.Duration
}

// Start resets the clock
func (c *SessionClock) Start(now time.Time) {
	*c = SessionClock{start: now}
}

// Pause freezes the clock. Pausing twice is a no-op.
func (c *SessionClock) Pause(now time.Time) {
	if c.paused {
		return
	}
	c.paused = true
	c.pausedAt = now
}

// Resume adds the paused interval to the offset
func (c *SessionClock) Resume(now time.Time) {
	if !c.paused {
		return
	}
	c.totalPaused += now.Sub(c.pausedAt)
	c.paused = false
}

// Elapsed is the active time as of now
func (c *SessionClock) Elapsed(now time.Time) time.Duration {
	if c.start.IsZero() {
		return 0
	}
	if c.paused {
		now = c.pausedAt
	}
	d := now.Sub(c.start) - c.totalPaused
	if d < 0 {
		return 0
	}
	return d
}

// Seconds is Elapsed truncated to whole seconds
func (c *SessionClock) Seconds(now time.Time) int64 {
	return int64(c.Elapsed(now) / time.Second)
}

// StartedAt is the time Start was called
func (c *SessionClock) StartedAt() time.Time {
	return c.start
}
