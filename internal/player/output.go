// ABOUTME: Audio output using oto library
// ABOUTME: Plays decoded tracks and exposes the playback position as a clock
package player

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/karaoke-go/cdg-player/internal/audio"
)

// watchInterval is how often a playback checks for end of track
const watchInterval = 10 * time.Millisecond

// otoPlayer is the subset of *oto.Player used by a Playback
type otoPlayer interface {
	Play()
	Pause()
	IsPlaying() bool
	BufferedSize() int
	SetVolume(volume float64)
}

// Output manages the audio device
type Output struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	newPlayer  func(r io.Reader) otoPlayer
	sampleRate int
	channels   int
	volume     int
	muted      bool
	current    *Playback
}

// NewOutput creates an audio output; the device is opened on first use
func NewOutput() *Output {
	return &Output{
		volume: 100,
		muted:  false,
	}
}

// open initializes oto with the specified format. oto allows one context
// per process, so later format changes keep the existing context and
// tracks are resampled to it instead. o.mu must be held.
func (o *Output) open(sampleRate, channels int) error {
	if o.newPlayer != nil {
		if o.sampleRate != sampleRate || o.channels != channels {
			log.Printf("Audio output already open at %dHz %dch, converting %dHz %dch",
				o.sampleRate, o.channels, sampleRate, channels)
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.newPlayer = func(r io.Reader) otoPlayer { return ctx.NewPlayer(r) }
	o.sampleRate = sampleRate
	o.channels = channels

	log.Printf("Audio output initialized: %dHz, %d channels", sampleRate, channels)

	return nil
}

// Play starts a track from the beginning and returns its playback handle.
// Any track still playing is stopped first.
func (o *Output) Play(track *audio.Track) (*Playback, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.open(track.SampleRate, track.Channels); err != nil {
		return nil, err
	}

	if o.current != nil {
		o.current.Stop()
	}

	track = audio.Resample(track, o.sampleRate)
	if track.Channels != o.channels {
		return nil, fmt.Errorf("track has %d channels, output has %d", track.Channels, o.channels)
	}

	reader := &countingReader{data: track.PCM}
	p := o.newPlayer(reader)
	p.SetVolume(getVolumeMultiplier(o.volume, o.muted))

	pb := newPlayback(p, reader, track.BytesPerSecond())
	p.Play()
	go pb.watch(watchInterval)

	o.current = pb

	log.Printf("Playing track: %v at %dHz", track.Duration(), track.SampleRate)

	return pb, nil
}

// SetVolume sets the volume (0-100)
func (o *Output) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}

	o.mu.Lock()
	o.volume = volume
	o.applyVolume()
	o.mu.Unlock()

	log.Printf("Volume set to %d", volume)
}

// SetMuted sets mute state
func (o *Output) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.applyVolume()
	o.mu.Unlock()

	log.Printf("Muted: %v", muted)
}

// GetVolume returns current volume
func (o *Output) GetVolume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// IsMuted returns mute state
func (o *Output) IsMuted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}

func (o *Output) applyVolume() {
	if o.current != nil {
		o.current.player.SetVolume(getVolumeMultiplier(o.volume, o.muted))
	}
}

// Close stops playback and suspends the device
func (o *Output) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		o.current.Stop()
		o.current = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			log.Printf("Failed to suspend audio output: %v", err)
		}
	}
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}

// Playback is one track being played. Its position is the clock the
// graphics are synchronized against.
type Playback struct {
	player         otoPlayer
	reader         *countingReader
	bytesPerSecond float64
	done           chan struct{}
	once           sync.Once
}

func newPlayback(p otoPlayer, reader *countingReader, bytesPerSecond int) *Playback {
	return &Playback{
		player:         p,
		reader:         reader,
		bytesPerSecond: float64(bytesPerSecond),
		done:           make(chan struct{}),
	}
}

// Elapsed returns the audible position in seconds: bytes handed to the
// device minus what it still holds in its buffer
func (p *Playback) Elapsed() float64 {
	pos := p.reader.Offset() - int64(p.player.BufferedSize())
	if pos < 0 {
		pos = 0
	}
	return float64(pos) / p.bytesPerSecond
}

// Done is closed when the track ends or is stopped
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Stop halts playback
func (p *Playback) Stop() {
	p.player.Pause()
	p.finish()
}

func (p *Playback) finish() {
	p.once.Do(func() { close(p.done) })
}

// watch closes done once the device stops playing
func (p *Playback) watch(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if !p.player.IsPlaying() {
				p.finish()
				return
			}
		}
	}
}

// countingReader serves PCM to the device and tracks how much was consumed
type countingReader struct {
	data []byte
	off  atomic.Int64
}

func (r *countingReader) Read(b []byte) (int, error) {
	off := r.off.Load()
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(b, r.data[off:])
	r.off.Add(int64(n))
	return n, nil
}

// Offset returns the number of bytes read so far
func (r *countingReader) Offset() int64 {
	return r.off.Load()
}
