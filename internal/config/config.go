// ABOUTME: Player configuration loaded from TOML
// ABOUTME: Defines defaults, file loading, and environment overrides
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Server is the karaoke server serving the queue and song files
type Server struct {
	BaseURL               string `toml:"base_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	CacheDir              string `toml:"cache_dir"`
	ClearCacheOnExit      bool   `toml:"clear_cache_on_exit"`
}

// Channel is the notification socket
type Channel struct {
	Enabled             bool   `toml:"enabled"`
	Addr                string `toml:"addr"` // host:port, derived from the server when empty
	Subprotocol         string `toml:"subprotocol"`
	Greeting            string `toml:"greeting"`
	PingIntervalSeconds int    `toml:"ping_interval_seconds"`
	HonorStop           bool   `toml:"honor_stop"`
}

// Sync controls graphics timing
type Sync struct {
	SectorDurationSeconds float64 `toml:"sector_duration_seconds"`
	PollIntervalMS        int     `toml:"poll_interval_ms"`
}

// Display describes the render surface and graphics geometry
type Display struct {
	FrameWidth           int     `toml:"frame_width"`
	FrameHeight          int     `toml:"frame_height"`
	DisplayWidth         int     `toml:"display_width"`
	DisplayHeight        int     `toml:"display_height"`
	Scale                float64 `toml:"scale"`
	ViewportWidth        int     `toml:"viewport_width"`
	ViewportHeight       int     `toml:"viewport_height"`
	BackdropPath         string  `toml:"backdrop_path"`
	BackdropSourceWidth  int     `toml:"backdrop_source_width"`
	BackdropSourceHeight int     `toml:"backdrop_source_height"`
	FollowTerminal       bool    `toml:"follow_terminal"` // size the viewport from the TUI window
}

// Queue controls automatic song requests while idle
type Queue struct {
	Autoplay            bool `toml:"autoplay"`
	PollIntervalSeconds int  `toml:"poll_interval_seconds"`
}

// Discovery controls mDNS lookup of the server
type Discovery struct {
	Enabled bool   `toml:"enabled"`
	Service string `toml:"service"`
}

// Config is the complete player configuration
type Config struct {
	Server    Server    `toml:"server"`
	Channel   Channel   `toml:"channel"`
	Sync      Sync      `toml:"sync"`
	Display   Display   `toml:"display"`
	Queue     Queue     `toml:"queue"`
	Discovery Discovery `toml:"discovery"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server: Server{
			BaseURL:               "http://localhost:8080",
			RequestTimeoutSeconds: 30,
		},
		Channel: Channel{
			Enabled:             true,
			Subprotocol:         "rust-websocket",
			Greeting:            "Hello Server!",
			PingIntervalSeconds: 30,
			HonorStop:           true,
		},
		Sync: Sync{
			SectorDurationSeconds: 0.013333333,
			PollIntervalMS:        10,
		},
		Display: Display{
			FrameWidth:           300,
			FrameHeight:          216,
			DisplayWidth:         300,
			DisplayHeight:        210,
			Scale:                1.5,
			ViewportWidth:        1280,
			ViewportHeight:       720,
			BackdropSourceWidth:  1912,
			BackdropSourceHeight: 1077,
		},
		Queue: Queue{
			Autoplay:            false,
			PollIntervalSeconds: 5,
		},
		Discovery: Discovery{
			Enabled: false,
			Service: "_karaoke._tcp",
		},
	}
}

// Load reads the config file at path over the defaults.
// A missing file is not an error; exists reports whether one was read.
func Load(path string) (cfg Config, exists bool, err error) {
	cfg = Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, false, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, false, fmt.Errorf("parse config: %w", err)
			}
			exists = true
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, exists, err
	}

	return cfg, exists, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("KARAOKE_SERVER"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("KARAOKE_CHANNEL_ADDR"); v != "" {
		c.Channel.Addr = v
	}
}

// RequestTimeout returns the HTTP timeout
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// PollInterval returns the playback loop interval
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Sync.PollIntervalMS) * time.Millisecond
}

// PingInterval returns the channel keep-alive interval
func (c Config) PingInterval() time.Duration {
	return time.Duration(c.Channel.PingIntervalSeconds) * time.Second
}

// QueuePollInterval returns the autoplay interval
func (c Config) QueuePollInterval() time.Duration {
	return time.Duration(c.Queue.PollIntervalSeconds) * time.Second
}
