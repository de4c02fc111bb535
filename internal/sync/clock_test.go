// ABOUTME: Tests for playback clock sources
// ABOUTME: Tests unstarted, running, and frozen clock behavior
package sync

import (
	"testing"
	"time"
)

func TestWallClockBeforeStart(t *testing.T) {
	c := NewWallClock()

	if got := c.Elapsed(); got >= 0 {
		t.Errorf("expected negative elapsed before start, got %v", got)
	}
}

func TestWallClockRunsAndFreezes(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewWallClock()
	c.now = func() time.Time { return now }

	c.Start()
	now = now.Add(1500 * time.Millisecond)

	if got := c.Elapsed(); got != 1.5 {
		t.Errorf("expected 1.5s elapsed, got %v", got)
	}

	c.Stop()
	now = now.Add(10 * time.Second)

	if got := c.Elapsed(); got != 1.5 {
		t.Errorf("expected frozen clock at 1.5s, got %v", got)
	}
}

func TestWallClockRestart(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewWallClock()
	c.now = func() time.Time { return now }

	c.Start()
	now = now.Add(3 * time.Second)
	c.Stop()
	c.Start()

	if got := c.Elapsed(); got != 0 {
		t.Errorf("expected restarted clock at 0, got %v", got)
	}
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(-0.5)

	if got := c.Elapsed(); got != -0.5 {
		t.Errorf("expected -0.5, got %v", got)
	}

	c.Set(0)
	c.Advance(250 * time.Millisecond)

	if got := c.Elapsed(); got != 0.25 {
		t.Errorf("expected 0.25, got %v", got)
	}
}
