// ABOUTME: Playback clock sources for graphics synchronization
// ABOUTME: Wall-clock and manually stepped clocks reporting elapsed seconds
package sync

import (
	"sync"
	"time"
)

// Clock reports elapsed playback time in seconds.
// A negative value means playback has not started yet.
type Clock interface {
	Elapsed() float64
}

// WallClock measures elapsed time from Start using the system monotonic clock.
// Once stopped it keeps reporting the time at which it was stopped.
type WallClock struct {
	mu      sync.Mutex
	now     func() time.Time
	start   time.Time
	started bool
	stopped bool
	frozen  float64
}

// NewWallClock creates a clock that has not started yet
func NewWallClock() *WallClock {
	return &WallClock{now: time.Now}
}

// Start begins measuring. Calling Start again restarts from zero.
func (c *WallClock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.start = c.now()
	c.started = true
	c.stopped = false
	c.frozen = 0
}

// Stop freezes the clock at its current position
func (c *WallClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started || c.stopped {
		return
	}
	c.frozen = c.now().Sub(c.start).Seconds()
	c.stopped = true
}

// Elapsed returns seconds since Start, or -1 before Start
func (c *WallClock) Elapsed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case !c.started:
		return -1
	case c.stopped:
		return c.frozen
	default:
		return c.now().Sub(c.start).Seconds()
	}
}

// ManualClock is advanced explicitly by its owner.
// Used for offline rendering and deterministic tests.
type ManualClock struct {
	mu      sync.Mutex
	elapsed float64
}

// NewManualClock creates a clock positioned at start seconds
func NewManualClock(start float64) *ManualClock {
	return &ManualClock{elapsed: start}
}

// Set moves the clock to an absolute position
func (c *ManualClock) Set(seconds float64) {
	c.mu.Lock()
	c.elapsed = seconds
	c.mu.Unlock()
}

// Advance moves the clock forward by d
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.elapsed += d.Seconds()
	c.mu.Unlock()
}

// Elapsed returns the current position in seconds
func (c *ManualClock) Elapsed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}
