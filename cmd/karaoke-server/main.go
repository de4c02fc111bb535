// ABOUTME: Entry point for the development karaoke server
// ABOUTME: Serves a song directory, its queue, and the notification channel to players
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/karaoke-go/cdg-player/internal/protocol"
	"github.com/karaoke-go/cdg-player/internal/server"
)

var (
	port        = flag.Int("port", 8080, "HTTP port for the queue and song files")
	channelPort = flag.Int("channel-port", protocol.DefaultChannelPort, "WebSocket port for the notification channel")
	songsDir    = flag.String("songs", "songs", "Directory of <id>.mp3 and <id>.cdg pairs")
	queueFlag   = flag.String("queue", "", "Comma-separated song ids to queue at startup")
	queueAll    = flag.Bool("queue-all", false, "Queue every song found in the songs directory")
	name        = flag.String("name", "", "Server friendly name (default: hostname-karaoke)")
	logFile     = flag.String("log-file", "karaoke-server.log", "Log file path")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if *noTUI {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	} else {
		log.SetOutput(f)
	}

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-karaoke", hostname)
	}

	var songs []string
	if *queueAll {
		songs, err = server.ScanSongs(*songsDir)
		if err != nil {
			log.Fatalf("Failed to scan songs: %v", err)
		}
	}
	for _, id := range strings.Split(*queueFlag, ",") {
		if id = strings.TrimSpace(id); id != "" {
			songs = append(songs, id)
		}
	}

	log.Printf("Starting karaoke server: %s on port %d (channel %d)", serverName, *port, *channelPort)
	log.Printf("Serving songs from %s, %d queued", *songsDir, len(songs))
	if *debug {
		log.Printf("Debug logging enabled")
	}

	srv := server.New(server.Config{
		Name:        serverName,
		Port:        *port,
		ChannelPort: *channelPort,
		SongsDir:    *songsDir,
		EnableMDNS:  !*noMDNS,
		UseTUI:      !*noTUI,
		Debug:       *debug,
	}, server.NewQueue(songs...))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}
