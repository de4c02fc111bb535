// ABOUTME: Tests for the session controller
// ABOUTME: Tests empty queue, decode failures, natural end, stop, and restart
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/karaoke-go/cdg-player/internal/assets"
	"github.com/karaoke-go/cdg-player/internal/audio"
	"github.com/karaoke-go/cdg-player/internal/cdg"
	"github.com/karaoke-go/cdg-player/internal/player"
	internalsync "github.com/karaoke-go/cdg-player/internal/sync"
)

type fakeAssets struct {
	mu      sync.Mutex
	queue   []string
	files   map[string][]byte
	fetched []string
	nextErr error
}

func (a *fakeAssets) NextSongID(ctx context.Context) (string, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.nextErr != nil {
		return "", false, a.nextErr
	}
	if len(a.queue) == 0 {
		return "", false, nil
	}
	id := a.queue[0]
	a.queue = a.queue[1:]
	return id, true, nil
}

func (a *fakeAssets) FetchBinary(ctx context.Context, path string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetched = append(a.fetched, path)
	data, ok := a.files[path]
	if !ok {
		return nil, &assets.FetchError{Path: path, Status: 404}
	}
	return data, nil
}

func (a *fakeAssets) fetchCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.fetched)
}

type fakePlayback struct {
	clock *internalsync.ManualClock
	done  chan struct{}
	once  sync.Once
}

func newFakePlayback() *fakePlayback {
	return &fakePlayback{clock: internalsync.NewManualClock(0), done: make(chan struct{})}
}

func (p *fakePlayback) Elapsed() float64      { return p.clock.Elapsed() }
func (p *fakePlayback) Done() <-chan struct{} { return p.done }
func (p *fakePlayback) Stop()                 { p.once.Do(func() { close(p.done) }) }

type fakeRenderer struct {
	idle   atomic.Int32
	frames atomic.Int32
	gate   chan struct{} // when set, RenderIdle blocks until it is closed
}

func (r *fakeRenderer) RenderIdle() {
	if r.gate != nil {
		<-r.gate
	}
	r.idle.Add(1)
}

func (r *fakeRenderer) RenderFrame(pix []byte) { r.frames.Add(1) }

type harness struct {
	assets    *fakeAssets
	renderer  *fakeRenderer
	started   atomic.Int32
	playbacks chan *fakePlayback
	ctrl      *Controller
}

// validGraphics returns a stream of n sectors of CD+G packets
func validGraphics(n int) []byte {
	data := make([]byte, n*cdg.SectorSize)
	for i := 0; i < len(data); i += cdg.PacketSize {
		data[i] = 0x09
	}
	return data
}

func newHarness(t *testing.T, files map[string][]byte, queue ...string) *harness {
	t.Helper()

	h := &harness{
		assets:    &fakeAssets{queue: queue, files: files},
		renderer:  &fakeRenderer{},
		playbacks: make(chan *fakePlayback, 4),
	}

	ctrl, err := NewController(Config{
		SectorDuration: internalsync.DefaultSectorDuration,
		PollInterval:   time.Millisecond,
	}, Deps{
		Assets:   h.assets,
		Renderer: h.renderer,
		NewDecoder: func(data []byte) (player.FrameDecoder, error) {
			dec, err := cdg.NewDecoder(data, nil)
			if err != nil {
				return nil, err
			}
			return dec, nil
		},
		DecodeAudio: func(data []byte) (*audio.Track, error) {
			if string(data) != "good audio" {
				return nil, &audio.DecodeError{Codec: "mp3", Err: errors.New("bad frame header")}
			}
			return &audio.Track{SampleRate: 44100, Channels: 2, PCM: make([]byte, 4)}, nil
		},
		StartAudio: func(track *audio.Track) (Playback, error) {
			h.started.Add(1)
			pb := newFakePlayback()
			h.playbacks <- pb
			return pb, nil
		},
	})
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}
	t.Cleanup(ctrl.Close)
	h.ctrl = ctrl

	return h
}

func songFiles(id string, graphics []byte) map[string][]byte {
	return map[string][]byte{
		"songs/" + id + ".mp3": []byte("good audio"),
		"songs/" + id + ".cdg": graphics,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewControllerRejectsBadSectorDuration(t *testing.T) {
	if _, err := NewController(Config{SectorDuration: 0}, Deps{}); err == nil {
		t.Error("expected error for zero sector duration")
	}
}

func TestStartNextSongEmptyQueue(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.ctrl.StartNextSong(context.Background()); err != nil {
		t.Fatalf("expected clean no-op, got %v", err)
	}

	if h.assets.fetchCount() != 0 {
		t.Errorf("expected no asset fetches, got %d", h.assets.fetchCount())
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}
	if h.started.Load() != 0 {
		t.Error("audio should not be started")
	}
}

func TestStartNextSongMalformedGraphics(t *testing.T) {
	h := newHarness(t, songFiles("1", []byte("garbage")), "1")

	err := h.ctrl.StartNextSong(context.Background())

	var decErr *cdg.DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected graphics DecodeError, got %v", err)
	}
	if h.started.Load() != 0 {
		t.Error("audio should never be started")
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}
	if h.ctrl.LastError() == nil {
		t.Error("expected last error to be recorded")
	}
}

func TestStartNextSongMalformedAudio(t *testing.T) {
	files := songFiles("1", validGraphics(4))
	files["songs/1.mp3"] = []byte("bad audio")
	for k, v := range songFiles("2", validGraphics(4)) {
		files[k] = v
	}
	h := newHarness(t, files, "1", "2")

	err := h.ctrl.StartNextSong(context.Background())

	var decErr *audio.DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected audio DecodeError, got %v", err)
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}

	// The next song still starts
	if err := h.ctrl.StartNextSong(context.Background()); err != nil {
		t.Fatalf("expected next song to start, got %v", err)
	}
	if h.ctrl.State() != StatePlaying || h.ctrl.SongID() != "2" {
		t.Errorf("expected song 2 playing, got %s %q", h.ctrl.State(), h.ctrl.SongID())
	}
}

func TestStartNextSongFetchError(t *testing.T) {
	h := newHarness(t, map[string][]byte{}, "9")

	err := h.ctrl.StartNextSong(context.Background())

	var fetchErr *assets.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}
}

func TestStartNextSongQueueError(t *testing.T) {
	h := newHarness(t, nil)
	h.assets.nextErr = &assets.FetchError{Path: "/player/next", Status: 500}

	if err := h.ctrl.StartNextSong(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if h.assets.fetchCount() != 0 {
		t.Error("no assets should be fetched")
	}
}

func TestStartNextSongFetchesBothAssets(t *testing.T) {
	h := newHarness(t, songFiles("5", validGraphics(4)), "5")

	if err := h.ctrl.StartNextSong(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	h.assets.mu.Lock()
	fetched := map[string]bool{}
	for _, p := range h.assets.fetched {
		fetched[p] = true
	}
	h.assets.mu.Unlock()

	if !fetched["songs/5.mp3"] || !fetched["songs/5.cdg"] {
		t.Errorf("expected both assets fetched, got %v", fetched)
	}
}

func TestStartWhileActive(t *testing.T) {
	h := newHarness(t, songFiles("1", validGraphics(4)), "1", "1")

	if err := h.ctrl.StartNextSong(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := h.ctrl.StartNextSong(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Errorf("expected ErrSessionActive, got %v", err)
	}
}

func TestNaturalEndReturnsToIdle(t *testing.T) {
	h := newHarness(t, songFiles("1", validGraphics(64)), "1")

	if err := h.ctrl.StartNextSong(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	pb := <-h.playbacks

	pb.clock.Set(0.1)
	waitFor(t, func() bool { return h.ctrl.Stats().LastSector == 7 })

	// Audio reaches the end of the track
	pb.Stop()
	if err := h.ctrl.Wait(context.Background()); err != nil {
		t.Fatalf("wait failed: %v", err)
	}

	if h.ctrl.State() != StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}
	if h.renderer.idle.Load() != 1 {
		t.Errorf("expected exactly one idle render, got %d", h.renderer.idle.Load())
	}
	if h.ctrl.SongID() != "" {
		t.Errorf("expected no song, got %q", h.ctrl.SongID())
	}
	if h.renderer.frames.Load() == 0 {
		t.Error("expected frames while playing")
	}

	// Further polling does not render
	frames := h.renderer.frames.Load()
	time.Sleep(10 * time.Millisecond)
	if h.renderer.frames.Load() != frames || h.renderer.idle.Load() != 1 {
		t.Error("loop kept rendering after session ended")
	}
}

func TestNextSongWaitsForPreviousIdleRender(t *testing.T) {
	files := songFiles("1", validGraphics(64))
	for k, v := range songFiles("2", validGraphics(64)) {
		files[k] = v
	}
	h := newHarness(t, files, "1", "2")
	gate := make(chan struct{})
	h.renderer.gate = gate

	if err := h.ctrl.StartNextSong(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	first := <-h.playbacks

	// Song ends; the loop is now blocked in its final idle render
	first.Stop()
	waitFor(t, func() bool { return h.ctrl.State() == StateIdle })

	result := make(chan error, 1)
	go func() { result <- h.ctrl.StartNextSong(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	if h.started.Load() != 1 {
		t.Fatal("next song started before the previous loop restored the backdrop")
	}
	if h.ctrl.State() != StateLoading {
		t.Errorf("expected loading while waiting, got %s", h.ctrl.State())
	}

	close(gate)
	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("next song failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for next song")
	}

	if h.renderer.idle.Load() != 1 {
		t.Errorf("expected one idle render, got %d", h.renderer.idle.Load())
	}
	if h.ctrl.SongID() != "2" {
		t.Errorf("expected song 2, got %q", h.ctrl.SongID())
	}
}

func TestStartNextSongWaitCancelled(t *testing.T) {
	h := newHarness(t, songFiles("1", validGraphics(64)), "1", "1")
	gate := make(chan struct{})
	h.renderer.gate = gate
	t.Cleanup(func() { close(gate) })

	if err := h.ctrl.StartNextSong(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	first := <-h.playbacks
	first.Stop()
	waitFor(t, func() bool { return h.ctrl.State() == StateIdle })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := h.ctrl.StartNextSong(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("expected idle, got %s", h.ctrl.State())
	}
	if h.started.Load() != 1 {
		t.Error("no new audio should be started")
	}
}

func TestStopThenRestart(t *testing.T) {
	files := songFiles("1", validGraphics(4))
	for k, v := range songFiles("2", validGraphics(4)) {
		files[k] = v
	}
	h := newHarness(t, files, "1", "2")

	if err := h.ctrl.StartNextSong(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	first := <-h.playbacks

	h.ctrl.Stop()

	select {
	case <-first.Done():
	default:
		t.Error("expected playback to be stopped")
	}
	if h.ctrl.State() != StateIdle {
		t.Errorf("expected idle after stop, got %s", h.ctrl.State())
	}
	if h.renderer.idle.Load() != 1 {
		t.Errorf("expected one idle render after stop, got %d", h.renderer.idle.Load())
	}

	if err := h.ctrl.StartNextSong(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if h.ctrl.SongID() != "2" {
		t.Errorf("expected song 2, got %q", h.ctrl.SongID())
	}
}

func TestStopWhenIdle(t *testing.T) {
	h := newHarness(t, nil)

	h.ctrl.Stop()

	if h.renderer.idle.Load() != 0 {
		t.Error("stop while idle should not render")
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateIdle:    "idle",
		StateLoading: "loading",
		StatePlaying: "playing",
		State(99):    "unknown",
	}
	for state, want := range tests {
		if state.String() != want {
			t.Errorf("expected %q, got %q", want, state.String())
		}
	}
}
