// ABOUTME: Playback loop synchronizing graphics with the audio clock
// ABOUTME: Polls the clock, advances the decoder by sector deltas, and renders
package player

import (
	"context"
	"log"
	"sync"
	"time"

	internalsync "github.com/karaoke-go/cdg-player/internal/sync"
)

// DefaultPollInterval is the minimum delay between loop iterations
const DefaultPollInterval = 10 * time.Millisecond

// FrameDecoder advances a graphics stream and exposes its current frame.
// The frame is only valid until the next Advance.
type FrameDecoder interface {
	Advance(n int) error
	CurrentFrame() []byte
}

// Renderer draws the idle backdrop or a decoded frame
type Renderer interface {
	RenderIdle()
	RenderFrame(pix []byte)
}

// Activity reports whether the session driving the loop is still playing
type Activity interface {
	Active() bool
}

// LoopConfig holds loop timing
type LoopConfig struct {
	SectorDuration float64       // seconds per sector, must be > 0
	Interval       time.Duration // minimum delay between iterations
}

// LoopStats tracks loop progress
type LoopStats struct {
	Iterations    int64
	Renders       int64
	Skipped       int64 // polls before the clock started
	CatchUps      int64 // polls that advanced more than one sector
	AdvanceErrors int64
	LastSector    int
	LastDelta     int
}

// Loop is the polling loop of one playback session
type Loop struct {
	config   LoopConfig
	clock    internalsync.Clock
	decoder  FrameDecoder
	renderer Renderer
	activity Activity
	cursor   internalsync.Cursor

	mu    sync.Mutex
	stats LoopStats
}

// NewLoop creates a loop for one session
func NewLoop(config LoopConfig, clock internalsync.Clock, decoder FrameDecoder, renderer Renderer, activity Activity) (*Loop, error) {
	if err := internalsync.ValidateSectorDuration(config.SectorDuration); err != nil {
		return nil, err
	}
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}

	return &Loop{
		config:   config,
		clock:    clock,
		decoder:  decoder,
		renderer: renderer,
		activity: activity,
	}, nil
}

// Run polls until the session stops being active or ctx is cancelled,
// then renders the idle backdrop once and returns
func (l *Loop) Run(ctx context.Context) {
	timer := time.NewTimer(l.config.Interval)
	defer timer.Stop()

	for {
		if !l.activity.Active() {
			log.Printf("Loop: playback ended after %d iterations", l.Stats().Iterations)
			l.renderer.RenderIdle()
			return
		}

		l.Poll()

		timer.Reset(l.config.Interval)
		select {
		case <-ctx.Done():
			l.renderer.RenderIdle()
			return
		case <-timer.C:
		}
	}
}

// Poll runs one iteration: clock, sector mapping, cursor, decoder, render
func (l *Loop) Poll() {
	sector := internalsync.SectorIndex(l.clock.Elapsed(), l.config.SectorDuration)
	delta, ok := l.cursor.Observe(sector)

	l.mu.Lock()
	l.stats.Iterations++
	if !ok {
		l.stats.Skipped++
		l.mu.Unlock()
		return
	}
	l.stats.LastSector = sector
	l.stats.LastDelta = delta
	if delta > 1 {
		l.stats.CatchUps++
	}
	l.mu.Unlock()

	if err := l.decoder.Advance(delta); err != nil {
		l.mu.Lock()
		l.stats.AdvanceErrors++
		l.mu.Unlock()
		log.Printf("Loop: advance by %d at sector %d failed: %v", delta, sector, err)
		return
	}

	l.renderer.RenderFrame(l.decoder.CurrentFrame())

	l.mu.Lock()
	l.stats.Renders++
	l.mu.Unlock()
}

// Stats returns a snapshot of loop statistics
func (l *Loop) Stats() LoopStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
