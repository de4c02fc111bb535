// ABOUTME: Main player application orchestration
// ABOUTME: Coordinates assets, audio output, rendering, the channel, and sessions
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/karaoke-go/cdg-player/internal/assets"
	"github.com/karaoke-go/cdg-player/internal/audio"
	"github.com/karaoke-go/cdg-player/internal/cdg"
	"github.com/karaoke-go/cdg-player/internal/client"
	"github.com/karaoke-go/cdg-player/internal/config"
	"github.com/karaoke-go/cdg-player/internal/discovery"
	"github.com/karaoke-go/cdg-player/internal/player"
	"github.com/karaoke-go/cdg-player/internal/protocol"
	"github.com/karaoke-go/cdg-player/internal/render"
	"github.com/karaoke-go/cdg-player/internal/session"
	"github.com/karaoke-go/cdg-player/internal/ui"
)

const statusInterval = 500 * time.Millisecond

// AudioOutput plays decoded tracks
type AudioOutput interface {
	Play(track *audio.Track) (session.Playback, error)
	SetVolume(volume int)
	SetMuted(muted bool)
	GetVolume() int
	IsMuted() bool
	Close()
}

// otoOutput adapts the device output to AudioOutput
type otoOutput struct {
	*player.Output
}

func (o otoOutput) Play(track *audio.Track) (session.Playback, error) {
	pb, err := o.Output.Play(track)
	if err != nil {
		return nil, err
	}
	return pb, nil
}

// Config holds player configuration
type Config struct {
	Settings    config.Config
	SnapshotDir string
	Output      AudioOutput                        // nil selects the system audio device
	DecodeAudio func([]byte) (*audio.Track, error) // nil selects audio.Decode
	OnStatus    func(ui.StatusMsg)
}

// Player represents the main player application
type Player struct {
	config     Config
	serverURL  string
	fetcher    *assets.Fetcher
	output     AudioOutput
	surface    *render.Surface
	compositor *render.Compositor
	channel    *client.Client
	controller *session.Controller

	next chan struct{}
	stop chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a player. When no server URL is configured and discovery
// is enabled, the server is located over mDNS first.
func New(ctx context.Context, cfg Config) (*Player, error) {
	settings := cfg.Settings

	serverURL := settings.Server.BaseURL
	if serverURL == "" {
		if !settings.Discovery.Enabled {
			return nil, errors.New("no server configured and discovery disabled")
		}
		server, err := discovery.Lookup(ctx, discovery.Config{Service: settings.Discovery.Service})
		if err != nil {
			return nil, fmt.Errorf("server discovery failed: %w", err)
		}
		serverURL = server.BaseURL()
	}

	fetcher, err := assets.NewFetcher(assets.Config{
		BaseURL:  serverURL,
		Timeout:  settings.RequestTimeout(),
		CacheDir: settings.Server.CacheDir,
	})
	if err != nil {
		return nil, err
	}

	geometry := render.Geometry{
		FrameWidth:    settings.Display.FrameWidth,
		FrameHeight:   settings.Display.FrameHeight,
		DisplayWidth:  settings.Display.DisplayWidth,
		DisplayHeight: settings.Display.DisplayHeight,
		Scale:         settings.Display.Scale,
	}
	if err := geometry.Validate(); err != nil {
		return nil, err
	}

	var backdrop image.Image
	if settings.Display.BackdropPath != "" {
		backdrop, err = render.LoadBackdrop(settings.Display.BackdropPath)
		if err != nil {
			log.Printf("Failed to load backdrop, using solid fill: %v", err)
			backdrop = nil
		}
	}
	backdropSrc := image.Rect(0, 0, settings.Display.BackdropSourceWidth, settings.Display.BackdropSourceHeight)

	surface := render.NewSurface(settings.Display.ViewportWidth, settings.Display.ViewportHeight)
	compositor := render.NewCompositor(surface, geometry, backdrop, backdropSrc)

	output := cfg.Output
	if output == nil {
		output = otoOutput{player.NewOutput()}
	}

	decodeAudio := cfg.DecodeAudio
	if decodeAudio == nil {
		decodeAudio = audio.Decode
	}

	controller, err := session.NewController(session.Config{
		SectorDuration: settings.Sync.SectorDurationSeconds,
		PollInterval:   settings.PollInterval(),
	}, session.Deps{
		Assets:   fetcher,
		Renderer: compositor,
		NewDecoder: func(data []byte) (player.FrameDecoder, error) {
			dec, err := cdg.NewDecoder(data, nil)
			if err != nil {
				return nil, err
			}
			return dec, nil
		},
		DecodeAudio: decodeAudio,
		StartAudio:  output.Play,
	})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	p := &Player{
		config:     cfg,
		serverURL:  serverURL,
		fetcher:    fetcher,
		output:     output,
		surface:    surface,
		compositor: compositor,
		controller: controller,
		next:       make(chan struct{}, 1),
		stop:       make(chan struct{}, 1),
		ctx:        runCtx,
		cancel:     cancel,
	}

	if settings.Channel.Enabled {
		addr := settings.Channel.Addr
		if addr == "" {
			addr = channelAddr(serverURL)
		}
		p.channel = client.NewClient(client.Config{
			Addr:         addr,
			Subprotocol:  settings.Channel.Subprotocol,
			Greeting:     settings.Channel.Greeting,
			PingInterval: settings.PingInterval(),
		})
		p.channel.OnMessage(p.handleChannelMessage)
	}

	return p, nil
}

// channelAddr derives the notification channel address from the server URL
func channelAddr(serverURL string) string {
	host := "localhost"
	if u, err := url.Parse(serverURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return net.JoinHostPort(host, strconv.Itoa(protocol.DefaultChannelPort))
}

// Start shows the idle backdrop, connects the channel, and starts
// serving song requests
func (p *Player) Start() {
	p.compositor.RenderIdle()

	log.Printf("Using karaoke server %s", p.serverURL)

	if p.channel != nil {
		// The channel is optional; playback works without it
		if err := p.channel.Connect(); err != nil {
			log.Printf("Channel unavailable: %v", err)
		}
	}

	p.wg.Add(1)
	go p.run()

	if p.config.OnStatus != nil {
		p.wg.Add(1)
		go p.statusLoop()
	}
}

// run serializes song starts and stops
func (p *Player) run() {
	defer p.wg.Done()

	var autoplay <-chan time.Time
	if p.config.Settings.Queue.Autoplay {
		ticker := time.NewTicker(p.config.Settings.QueuePollInterval())
		defer ticker.Stop()
		autoplay = ticker.C
	}

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.next:
			p.startNext()
		case <-p.stop:
			p.controller.Stop()
		case <-autoplay:
			if p.controller.State() == session.StateIdle {
				p.startNext()
			}
		}
	}
}

func (p *Player) startNext() {
	err := p.controller.StartNextSong(p.ctx)
	if errors.Is(err, session.ErrSessionActive) {
		log.Printf("Song already playing, ignoring request")
	}
}

// RequestNext asks for the next queued song to be started
func (p *Player) RequestNext() {
	select {
	case p.next <- struct{}{}:
	default:
	}
}

// RequestStop asks for the current song to be stopped
func (p *Player) RequestStop() {
	select {
	case p.stop <- struct{}{}:
	default:
	}
}

// handleChannelMessage reacts to server pushes
func (p *Player) handleChannelMessage(text string) {
	if text == protocol.CommandStop && p.config.Settings.Channel.HonorStop {
		log.Printf("Stop requested by server")
		p.RequestStop()
	}
}

// Snapshot writes the current surface to a PNG and returns its path
func (p *Player) Snapshot() (string, error) {
	dir := p.config.SnapshotDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("frame-%s.png", time.Now().Format("20060102-150405.000")))
	if err := p.surface.SavePNG(path); err != nil {
		return "", err
	}

	log.Printf("Snapshot saved: %s", path)
	return path, nil
}

// SetVolume sets the output volume (0-100)
func (p *Player) SetVolume(volume int) {
	p.output.SetVolume(volume)
}

// SetMuted sets the output mute state
func (p *Player) SetMuted(muted bool) {
	p.output.SetMuted(muted)
}

// Controller returns the session controller
func (p *Player) Controller() *session.Controller {
	return p.controller
}

// Resize changes the render viewport
func (p *Player) Resize(width, height int) {
	log.Printf("Viewport resized to %dx%d", width, height)
	p.compositor.Resize(width, height)
}

// Surface returns the render surface
func (p *Player) Surface() *render.Surface {
	return p.surface
}

// statusLoop periodically reports state to the status callback
func (p *Player) statusLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.config.OnStatus(p.status())
		}
	}
}

// status collects the current player state
func (p *Player) status() ui.StatusMsg {
	stats := p.controller.Stats()
	connected := p.channel != nil && p.channel.IsConnected()

	errText := ""
	if err := p.controller.LastError(); err != nil {
		errText = err.Error()
	}

	volume := p.output.GetVolume()
	muted := p.output.IsMuted()

	return ui.StatusMsg{
		ServerURL:     p.serverURL,
		Channel:       &connected,
		State:         p.controller.State().String(),
		SongID:        p.controller.SongID(),
		Sector:        stats.LastSector,
		Delta:         stats.LastDelta,
		Iterations:    stats.Iterations,
		CatchUps:      stats.CatchUps,
		AdvanceErrors: stats.AdvanceErrors,
		Volume:        &volume,
		Muted:         &muted,
		Error:         &errText,
	}
}

// Stop stops the player
func (p *Player) Stop() {
	p.cancel()
	p.wg.Wait()

	p.controller.Close()

	if p.channel != nil {
		p.channel.Close()
	}

	p.output.Close()

	if p.config.Settings.Server.ClearCacheOnExit {
		if err := p.fetcher.Cleanup(); err != nil {
			log.Printf("Failed to clear asset cache: %v", err)
		}
	}

	log.Printf("Player stopped")
}
