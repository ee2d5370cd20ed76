package kernel

import "sync/atomic"

// ManualClock is a reference Clock driven explicitly by Advance, for
// tests and for a CLI that derives ticks from the driver loop itself
// rather than a wall-clock timer.
type ManualClock struct {
	tick atomic.Int64
}

// Tick returns the current tick count.
func (c *ManualClock) Tick() int { return int(c.tick.Load()) }

// Advance moves the clock forward by one tick and returns the new
// value.
func (c *ManualClock) Advance() int { return int(c.tick.Add(1)) }
