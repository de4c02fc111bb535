// ABOUTME: Linear resampler for decoded tracks
// ABOUTME: Converts a track to the sample rate the output device was opened with
package audio

import "encoding/binary"

// Resampler performs linear interpolation between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
}

// NewResampler creates a resampler for interleaved audio
func NewResampler(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Resample converts interleaved input samples to the output rate
func (r *Resampler) Resample(input []int16) []int16 {
	inputFrames := len(input) / r.channels
	if inputFrames < 2 {
		return append([]int16(nil), input...)
	}

	outputFrames := int(float64(inputFrames-1)/r.ratio) + 1
	output := make([]int16, outputFrames*r.channels)

	for outIdx := 0; outIdx < outputFrames; outIdx++ {
		pos := float64(outIdx) * r.ratio
		idx := int(pos)
		if idx >= inputFrames-1 {
			idx = inputFrames - 2
		}
		frac := pos - float64(idx)

		for ch := 0; ch < r.channels; ch++ {
			s1 := float64(input[idx*r.channels+ch])
			s2 := float64(input[(idx+1)*r.channels+ch])
			output[outIdx*r.channels+ch] = int16(s1*(1.0-frac) + s2*frac)
		}
	}

	return output
}

// Resample returns a copy of track at the given sample rate.
// The track itself is returned when no conversion is needed.
func Resample(track *Track, sampleRate int) *Track {
	if track.SampleRate == sampleRate || sampleRate <= 0 {
		return track
	}

	samples := make([]int16, len(track.PCM)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(track.PCM[i*2:]))
	}

	out := NewResampler(track.SampleRate, sampleRate, track.Channels).Resample(samples)

	pcm := make([]byte, len(out)*BytesPerSample)
	for i, s := range out {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	return &Track{
		SampleRate: sampleRate,
		Channels:   track.Channels,
		PCM:        pcm,
	}
}
