// ABOUTME: Entry point for the karaoke CDG player
// ABOUTME: Parses CLI flags, loads config, and starts the player application
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/karaoke-go/cdg-player/internal/app"
	"github.com/karaoke-go/cdg-player/internal/config"
	"github.com/karaoke-go/cdg-player/internal/ui"
	"github.com/karaoke-go/cdg-player/internal/version"
)

var (
	configPath  = flag.String("config", "karaoke-player.toml", "Config file path")
	serverURL   = flag.String("server", "", "Karaoke server URL (overrides config)")
	logFile     = flag.String("log-file", "karaoke-player.log", "Log file path")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	snapshotDir = flag.String("snapshot-dir", "", "Directory for surface snapshots (default: temp dir)")
	autoplay    = flag.Bool("autoplay", false, "Start queued songs automatically while idle")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	settings, exists, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if exists {
		log.Printf("Loaded config from %s", *configPath)
	}
	if *serverURL != "" {
		settings.Server.BaseURL = *serverURL
	}
	if *autoplay {
		settings.Queue.Autoplay = true
	}
	if err := settings.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting %s %s", version.Product, version.Version)

	// TUI setup
	var tuiProg *tea.Program
	var controls *ui.Controls

	if useTUI {
		controls = ui.NewControls()
		tuiProg = ui.Run(controls)
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	player, err := app.New(ctx, app.Config{
		Settings:    settings,
		SnapshotDir: *snapshotDir,
		OnStatus:    updateTUI,
	})
	cancel()
	if err != nil {
		if tuiProg != nil {
			tuiProg.Kill()
		}
		log.Fatalf("Failed to create player: %v", err)
	}

	player.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if controls != nil {
		handleControls(player, controls, settings.Display.FollowTerminal, updateTUI, sigChan)
	} else {
		// Without a TUI the first song is requested right away
		player.RequestNext()
		<-sigChan
		log.Printf("Shutdown signal received")
	}

	player.Stop()

	if tuiProg != nil {
		tuiProg.Quit()
	}
}

// handleControls processes TUI actions until quit or a signal
func handleControls(player *app.Player, controls *ui.Controls, followTerminal bool, updateTUI func(ui.StatusMsg), sigChan <-chan os.Signal) {
	for {
		select {
		case action := <-controls.Actions:
			switch action {
			case ui.ActionNext:
				player.RequestNext()
			case ui.ActionStop:
				player.RequestStop()
			case ui.ActionSnapshot:
				path, err := player.Snapshot()
				if err != nil {
					log.Printf("Snapshot failed: %v", err)
					continue
				}
				updateTUI(ui.StatusMsg{Snapshot: path})
			case ui.ActionQuit:
				log.Printf("Received quit signal from TUI")
				return
			}
		case vol := <-controls.Volume:
			log.Printf("Volume change: %d%%, muted=%v", vol.Volume, vol.Muted)
			player.SetVolume(vol.Volume)
			player.SetMuted(vol.Muted)
		case vp := <-controls.Viewport:
			if followTerminal {
				player.Resize(vp.Width, vp.Height)
			}
		case <-sigChan:
			log.Printf("Shutdown signal received")
			return
		}
	}
}
