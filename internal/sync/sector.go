// ABOUTME: Sector mapping and frame cursor bookkeeping
// ABOUTME: Converts elapsed audio time into decoder advancement deltas
package sync

import (
	"fmt"
	"math"
)

// DefaultSectorDuration is the playback time covered by one CD+G sector (1/75 s)
const DefaultSectorDuration = 0.013333333

// ValidateSectorDuration rejects durations that would make SectorIndex divide by zero
func ValidateSectorDuration(seconds float64) error {
	if !(seconds > 0) || math.IsInf(seconds, 0) {
		return fmt.Errorf("sector duration must be a positive finite number of seconds, got %v", seconds)
	}
	return nil
}

// SectorIndex maps elapsed seconds to the sector being played.
// Negative elapsed time maps to a negative index.
func SectorIndex(elapsedSeconds, sectorDurationSeconds float64) int {
	return int(math.Floor(elapsedSeconds / sectorDurationSeconds))
}

// Cursor tracks the last observed sector of a playback session
type Cursor struct {
	last        int
	initialized bool
}

// Observe records a newly computed sector and returns how far the decoder
// should advance. ok is false when nothing should be requested: the sector
// is negative because the clock has not started.
//
// The first observation of a session initializes the cursor and returns a
// zero delta. The cursor never moves backwards, so the delta is never negative.
func (c *Cursor) Observe(sector int) (delta int, ok bool) {
	if sector < 0 {
		return 0, false
	}

	if !c.initialized {
		c.last = sector
		c.initialized = true
		return 0, true
	}

	if sector < c.last {
		return 0, true
	}

	delta = sector - c.last
	c.last = sector
	return delta, true
}

// Last returns the most recently observed sector
func (c *Cursor) Last() int {
	return c.last
}

// Initialized reports whether the cursor has seen a sector this session
func (c *Cursor) Initialized() bool {
	return c.initialized
}

// Reset returns the cursor to its uninitialized state for a new session
func (c *Cursor) Reset() {
	c.last = 0
	c.initialized = false
}
