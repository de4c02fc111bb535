// ABOUTME: Session controller orchestrating song startup and teardown
// ABOUTME: Fetches assets, builds the decoder, starts audio, and runs the playback loop
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/karaoke-go/cdg-player/internal/audio"
	"github.com/karaoke-go/cdg-player/internal/player"
	"github.com/karaoke-go/cdg-player/internal/protocol"
	internalsync "github.com/karaoke-go/cdg-player/internal/sync"
	"golang.org/x/sync/errgroup"
)

// ErrSessionActive is returned when a song is requested while one is
// already loading or playing
var ErrSessionActive = errors.New("session already active")

// State is the controller's session state
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Assets resolves the next song and retrieves its files
type Assets interface {
	NextSongID(ctx context.Context) (string, bool, error)
	FetchBinary(ctx context.Context, path string) ([]byte, error)
}

// Playback is a started audio track. Its position drives the loop.
type Playback interface {
	Elapsed() float64
	Done() <-chan struct{}
	Stop()
}

// Deps are the collaborators a controller drives
type Deps struct {
	Assets      Assets
	Renderer    player.Renderer
	NewDecoder  func(data []byte) (player.FrameDecoder, error)
	DecodeAudio func(data []byte) (*audio.Track, error)
	StartAudio  func(track *audio.Track) (Playback, error)
}

// Config holds controller settings
type Config struct {
	SectorDuration float64
	PollInterval   time.Duration
}

// session is one song from audio start until it ends or is stopped
type session struct {
	id       uuid.UUID
	songID   string
	active   atomic.Bool
	playback Playback
	loop     *player.Loop
	done     chan struct{} // closed when the loop exits
}

// Active reports whether the session is still playing
func (s *session) Active() bool {
	return s.active.Load()
}

// Controller owns the session state. Only one session plays at a time.
type Controller struct {
	config Config
	deps   Deps

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	current *session
	last    *session
	lastErr error
}

// NewController creates a controller in the idle state
func NewController(config Config, deps Deps) (*Controller, error) {
	if err := internalsync.ValidateSectorDuration(config.SectorDuration); err != nil {
		return nil, err
	}
	if deps.Assets == nil || deps.Renderer == nil || deps.NewDecoder == nil ||
		deps.DecodeAudio == nil || deps.StartAudio == nil {
		return nil, errors.New("session controller requires all dependencies")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		config: config,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
	}, nil
}

// StartNextSong asks the queue for a song and starts playing it.
// With nothing queued it returns nil and the controller stays idle.
// Any failure leaves the controller idle and ready for another attempt.
func (c *Controller) StartNextSong(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.state = StateLoading
	c.mu.Unlock()

	// The previous loop restores the backdrop after the state goes idle;
	// its final render must not land on top of the new song
	if err := c.Wait(ctx); err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return err
	}

	sess, err := c.prepare(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = StateIdle
		c.lastErr = err
		log.Printf("Session: failed to start song: %v", err)
		return err
	}
	if sess == nil {
		c.state = StateIdle
		return nil
	}
	if c.ctx.Err() != nil {
		sess.playback.Stop()
		c.state = StateIdle
		return c.ctx.Err()
	}

	c.current = sess
	c.last = sess
	c.lastErr = nil
	c.state = StatePlaying
	sess.active.Store(true)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		defer close(sess.done)
		sess.loop.Run(c.ctx)
	}()
	go func() {
		defer c.wg.Done()
		c.watch(sess)
	}()

	log.Printf("Session: playing song %s (session %s)", sess.songID, sess.id)
	return nil
}

// prepare fetches and decodes a song and starts its audio.
// It returns nil without error when the queue is empty.
func (c *Controller) prepare(ctx context.Context) (*session, error) {
	songID, ok, err := c.deps.Assets.NextSongID(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Printf("Session: no song queued")
		return nil, nil
	}

	log.Printf("Session: loading song %s", songID)

	var audioData, graphicsData []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := c.deps.Assets.FetchBinary(gctx, protocol.AudioPath(songID))
		audioData = data
		return err
	})
	g.Go(func() error {
		data, err := c.deps.Assets.FetchBinary(gctx, protocol.GraphicsPath(songID))
		graphicsData = data
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	decoder, err := c.deps.NewDecoder(graphicsData)
	if err != nil {
		return nil, fmt.Errorf("song %s graphics: %w", songID, err)
	}

	track, err := c.deps.DecodeAudio(audioData)
	if err != nil {
		return nil, fmt.Errorf("song %s audio: %w", songID, err)
	}

	playback, err := c.deps.StartAudio(track)
	if err != nil {
		return nil, fmt.Errorf("song %s audio output: %w", songID, err)
	}

	sess := &session{
		id:       uuid.New(),
		songID:   songID,
		playback: playback,
		done:     make(chan struct{}),
	}

	loop, err := player.NewLoop(player.LoopConfig{
		SectorDuration: c.config.SectorDuration,
		Interval:       c.config.PollInterval,
	}, playback, decoder, c.deps.Renderer, sess)
	if err != nil {
		playback.Stop()
		return nil, err
	}
	sess.loop = loop

	return sess, nil
}

// watch ends the session when its audio finishes
func (c *Controller) watch(sess *session) {
	select {
	case <-sess.playback.Done():
		log.Printf("Session: song %s finished", sess.songID)
	case <-c.ctx.Done():
	}
	c.end(sess)
}

// end flips the session inactive and returns the controller to idle
func (c *Controller) end(sess *session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess.active.Store(false)
	if c.current == sess {
		c.current = nil
		c.state = StateIdle
	}
}

// Stop ends the current song, if any, and waits for its loop to
// restore the idle backdrop
func (c *Controller) Stop() {
	c.mu.Lock()
	sess := c.current
	c.mu.Unlock()

	if sess == nil {
		return
	}

	log.Printf("Session: stopping song %s", sess.songID)
	sess.playback.Stop()
	c.end(sess)
	<-sess.done
}

// State returns the current session state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SongID returns the id of the playing song, or "" when idle
func (c *Controller) SongID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.songID
}

// Stats returns loop statistics of the current or most recent session
func (c *Controller) Stats() player.LoopStats {
	c.mu.Lock()
	sess := c.last
	c.mu.Unlock()

	if sess == nil {
		return player.LoopStats{}
	}
	return sess.loop.Stats()
}

// LastError returns the error of the most recent failed start
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Wait blocks until the loop of the most recent session, if any, has
// rendered the idle backdrop and exited
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	sess := c.last
	c.mu.Unlock()

	if sess == nil {
		return nil
	}
	select {
	case <-sess.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops playback and waits for all session goroutines
func (c *Controller) Close() {
	c.Stop()
	c.cancel()
	c.wg.Wait()
}
