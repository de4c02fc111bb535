// ABOUTME: Renderer for a CDG file against a simulated or real-time clock
// ABOUTME: Drives the playback loop and writes PNG snapshots at a fixed interval
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/karaoke-go/cdg-player/internal/cdg"
	"github.com/karaoke-go/cdg-player/internal/config"
	"github.com/karaoke-go/cdg-player/internal/player"
	"github.com/karaoke-go/cdg-player/internal/render"
	internalsync "github.com/karaoke-go/cdg-player/internal/sync"
)

var (
	cdgPath    = flag.String("cdg", "", "CDG file to render")
	outDir     = flag.String("out", "cdg-trace", "Output directory for snapshots")
	duration   = flag.Duration("duration", 10*time.Second, "Simulated playback length")
	poll       = flag.Duration("poll", 10*time.Millisecond, "Simulated loop interval")
	jitter     = flag.Duration("jitter", 0, "Extra delay added to every 10th poll")
	every      = flag.Duration("every", time.Second, "Snapshot interval")
	configPath = flag.String("config", "", "Config file for display geometry")
	realtime   = flag.Bool("realtime", false, "Run the loop against the wall clock instead of simulating")
)

// always reports an active session
type always struct{}

func (always) Active() bool { return true }

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	if *cdgPath == "" {
		log.Fatalf("-cdg is required")
	}

	settings, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	data, err := os.ReadFile(*cdgPath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *cdgPath, err)
	}

	decoder, err := cdg.NewDecoder(data, nil)
	if err != nil {
		log.Fatalf("Failed to open graphics stream: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	geometry := render.Geometry{
		FrameWidth:    settings.Display.FrameWidth,
		FrameHeight:   settings.Display.FrameHeight,
		DisplayWidth:  settings.Display.DisplayWidth,
		DisplayHeight: settings.Display.DisplayHeight,
		Scale:         settings.Display.Scale,
	}
	if err := geometry.Validate(); err != nil {
		log.Fatalf("Invalid geometry: %v", err)
	}

	surface := render.NewSurface(settings.Display.ViewportWidth, settings.Display.ViewportHeight)
	compositor := render.NewCompositor(surface, geometry, nil, image.Rectangle{})

	if *realtime {
		runRealtime(settings, decoder, surface, compositor)
	} else {
		runSimulated(settings, decoder, surface, compositor)
	}
}

// snapshotPath names a snapshot by its playback position
func snapshotPath(at time.Duration) string {
	return filepath.Join(*outDir, fmt.Sprintf("frame-%06d.png", at.Milliseconds()))
}

// runSimulated steps a manual clock by the poll interval, so the output
// is reproducible and independent of scheduling
func runSimulated(settings config.Config, decoder *cdg.Decoder, surface *render.Surface, compositor *render.Compositor) {
	clock := internalsync.NewManualClock(0)
	loop, err := player.NewLoop(player.LoopConfig{
		SectorDuration: settings.Sync.SectorDurationSeconds,
	}, clock, decoder, compositor, always{})
	if err != nil {
		log.Fatalf("Failed to create loop: %v", err)
	}

	fmt.Printf("Rendering %s: %d sectors, %v simulated\n", *cdgPath, decoder.Sectors(), *duration)

	nextSnapshot := time.Duration(0)
	elapsed := time.Duration(0)
	for i := 0; elapsed <= *duration; i++ {
		loop.Poll()

		if elapsed >= nextSnapshot {
			if err := surface.SavePNG(snapshotPath(elapsed)); err != nil {
				log.Fatalf("Failed to save snapshot: %v", err)
			}
			nextSnapshot += *every
		}

		step := *poll
		if *jitter > 0 && i%10 == 9 {
			step += *jitter
		}
		clock.Advance(step)
		elapsed += step
	}

	printStats(loop, decoder)
}

// runRealtime runs the loop on its own goroutine against the wall clock,
// the way a session does, and snapshots on a ticker
func runRealtime(settings config.Config, decoder *cdg.Decoder, surface *render.Surface, compositor *render.Compositor) {
	clock := internalsync.NewWallClock()
	loop, err := player.NewLoop(player.LoopConfig{
		SectorDuration: settings.Sync.SectorDurationSeconds,
		Interval:       *poll,
	}, clock, decoder, compositor, always{})
	if err != nil {
		log.Fatalf("Failed to create loop: %v", err)
	}

	fmt.Printf("Rendering %s: %d sectors, %v real time\n", *cdgPath, decoder.Sectors(), *duration)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	clock.Start()
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()

	ticker := time.NewTicker(*every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			clock.Stop()
			<-done
			printStats(loop, decoder)
			return
		case <-ticker.C:
			at := time.Duration(clock.Elapsed() * float64(time.Second))
			if err := surface.SavePNG(snapshotPath(at)); err != nil {
				log.Fatalf("Failed to save snapshot: %v", err)
			}
		}
	}
}

func printStats(loop *player.Loop, decoder *cdg.Decoder) {
	stats := loop.Stats()
	fmt.Printf("Polls: %d  renders: %d  catch-ups: %d  advance errors: %d  last sector: %d/%d\n",
		stats.Iterations, stats.Renders, stats.CatchUps, stats.AdvanceErrors,
		stats.LastSector, decoder.Sectors())
}
