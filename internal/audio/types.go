// ABOUTME: Audio type definitions
// ABOUTME: Defines decoded tracks and the audio decode error
package audio

import (
	"fmt"
	"time"
)

// BytesPerSample is the size of one signed 16-bit PCM sample
const BytesPerSample = 2

// Track is a fully decoded song held in memory
type Track struct {
	SampleRate int
	Channels   int
	PCM        []byte // Interleaved signed 16-bit little-endian samples
}

// BytesPerSecond returns the PCM data rate of the track
func (t *Track) BytesPerSecond() int {
	return t.SampleRate * t.Channels * BytesPerSample
}

// Duration returns the playback length of the track
func (t *Track) Duration() time.Duration {
	bps := t.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(float64(len(t.PCM)) / float64(bps) * float64(time.Second))
}

// DecodeError reports malformed or unsupported audio data
type DecodeError struct {
	Codec string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("audio decode failed (%s): %v", e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
