// ABOUTME: Tests for sector mapping and the frame cursor
// ABOUTME: Covers floor semantics, monotonicity, and telescoping deltas
package sync

import (
	"math"
	"testing"
)

func TestSectorIndexStartOfTrack(t *testing.T) {
	if got := SectorIndex(0, DefaultSectorDuration); got != 0 {
		t.Errorf("expected sector 0 at start of track, got %d", got)
	}
}

func TestSectorIndexFloor(t *testing.T) {
	tests := []struct {
		elapsed  float64
		duration float64
		expected int
	}{
		{0.0, 0.5, 0},
		{0.49, 0.5, 0},
		{0.5, 0.5, 1},
		{1.74, 0.5, 3},
		{-0.01, 0.5, -1},
		{-1.0, 0.5, -2},
	}

	for _, tt := range tests {
		got := SectorIndex(tt.elapsed, tt.duration)
		if got != tt.expected {
			t.Errorf("SectorIndex(%v, %v) = %d, expected %d", tt.elapsed, tt.duration, got, tt.expected)
		}
	}
}

func TestSectorIndexMonotonic(t *testing.T) {
	prev := SectorIndex(0, DefaultSectorDuration)
	for i := 1; i <= 20000; i++ {
		elapsed := float64(i) * 0.0007
		got := SectorIndex(elapsed, DefaultSectorDuration)
		if got < prev {
			t.Fatalf("sector decreased at %vs: %d -> %d", elapsed, prev, got)
		}
		if want := int(math.Floor(elapsed / DefaultSectorDuration)); got != want {
			t.Fatalf("SectorIndex(%v) = %d, expected %d", elapsed, got, want)
		}
		prev = got
	}
}

func TestValidateSectorDuration(t *testing.T) {
	for _, bad := range []float64{0, -0.01, math.NaN(), math.Inf(1)} {
		if err := ValidateSectorDuration(bad); err == nil {
			t.Errorf("expected error for sector duration %v", bad)
		}
	}
	if err := ValidateSectorDuration(DefaultSectorDuration); err != nil {
		t.Errorf("unexpected error for default duration: %v", err)
	}
}

func TestCursorFirstObservationIsZero(t *testing.T) {
	var c Cursor

	delta, ok := c.Observe(42)
	if !ok {
		t.Fatal("expected first non-negative observation to be accepted")
	}
	if delta != 0 {
		t.Errorf("expected no catch-up burst on first poll, got delta %d", delta)
	}
	if c.Last() != 42 {
		t.Errorf("expected cursor at 42, got %d", c.Last())
	}
}

func TestCursorNegativeSectorSkipped(t *testing.T) {
	var c Cursor

	if _, ok := c.Observe(-1); ok {
		t.Error("expected negative sector to be skipped")
	}
	if c.Initialized() {
		t.Error("cursor should stay uninitialized after a negative sector")
	}

	c.Observe(5)
	if _, ok := c.Observe(-3); ok {
		t.Error("expected negative sector to be skipped after initialization")
	}
	if c.Last() != 5 {
		t.Errorf("negative sector must not move the cursor, got %d", c.Last())
	}
}

func TestCursorNeverGoesBackwards(t *testing.T) {
	var c Cursor
	c.Observe(10)

	delta, ok := c.Observe(7)
	if !ok || delta != 0 {
		t.Errorf("expected zero delta for stale sector, got %d (ok=%v)", delta, ok)
	}
	if c.Last() != 10 {
		t.Errorf("expected cursor to stay at 10, got %d", c.Last())
	}
}

func TestCursorTelescopingSum(t *testing.T) {
	var c Cursor
	sectors := []int{3, 3, 4, 9, 9, 10, 25, 26, 26, 40}

	sum := 0
	for _, s := range sectors {
		delta, ok := c.Observe(s)
		if !ok {
			t.Fatalf("unexpected skip for sector %d", s)
		}
		if delta < 0 {
			t.Fatalf("negative delta %d for sector %d", delta, s)
		}
		sum += delta
	}

	if want := sectors[len(sectors)-1] - sectors[0]; sum != want {
		t.Errorf("expected deltas to sum to %d, got %d", want, sum)
	}
}

func TestCursorScenarioFromElapsedTimes(t *testing.T) {
	var c Cursor
	elapsed := []float64{0.0, 0.013, 0.027, 0.040}
	wantSectors := []int{0, 0, 2, 3}
	wantDeltas := []int{0, 0, 2, 1}

	for i, e := range elapsed {
		sector := SectorIndex(e, DefaultSectorDuration)
		if sector != wantSectors[i] {
			t.Fatalf("poll %d: expected sector %d, got %d", i, wantSectors[i], sector)
		}
		delta, ok := c.Observe(sector)
		if !ok {
			t.Fatalf("poll %d: unexpected skip", i)
		}
		if delta != wantDeltas[i] {
			t.Errorf("poll %d: expected delta %d, got %d", i, wantDeltas[i], delta)
		}
	}
}

func TestCursorReset(t *testing.T) {
	var c Cursor
	c.Observe(100)
	c.Reset()

	if c.Initialized() {
		t.Error("expected cursor to be uninitialized after reset")
	}
	delta, _ := c.Observe(150)
	if delta != 0 {
		t.Errorf("expected first poll after reset to be zero, got %d", delta)
	}
}
