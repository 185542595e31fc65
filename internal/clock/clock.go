// Package clock provides the logical clock and wall-time source shared by
// stores, the event bus, and the transaction coordinator.
//
// Ordering always uses the logical sequence from Clock.Next(). Wall time is
// only recorded for diagnostics (Snapshot.LastUpdate, history timestamps).
package clock

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic logical clock.
//
// Every accepted store change, every emitted event and every coordinated
// operation is stamped with a strictly increasing seq from a Clock.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// New creates a new clock starting at 0.
func New() *Clock {
	return &Clock{}
}

// NewAt creates a clock starting at a specific sequence number.
func NewAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

var defaultClock = New()

// Default returns the process-wide clock used when no clock is injected.
func Default() *Clock {
	return defaultClock
}

// NowFunc returns the current wall time. Tests inject a deterministic one.
type NowFunc func() time.Time

// SystemNow is the default NowFunc.
func SystemNow() time.Time {
	return time.Now()
}
