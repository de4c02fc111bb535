// ABOUTME: Whole-file audio decoder for karaoke tracks
// ABOUTME: Decodes MP3 and FLAC bytes to 16-bit stereo PCM
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

var flacMagic = []byte("fLaC")

// Decode detects the container of data and decodes it to a stereo Track
func Decode(data []byte) (*Track, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Codec: "unknown", Err: errors.New("empty audio data")}
	}

	if bytes.HasPrefix(data, flacMagic) {
		return decodeFLAC(data)
	}
	return decodeMP3(data)
}

func decodeMP3(data []byte) (*Track, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Codec: "mp3", Err: err}
	}

	// go-mp3 always produces 16-bit little-endian stereo
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, &DecodeError{Codec: "mp3", Err: err}
	}
	if len(pcm) == 0 {
		return nil, &DecodeError{Codec: "mp3", Err: errors.New("no audio frames")}
	}

	track := &Track{
		SampleRate: decoder.SampleRate(),
		Channels:   2,
		PCM:        pcm,
	}

	log.Printf("Decoded MP3: %dHz, %v", track.SampleRate, track.Duration())
	return track, nil
}

func decodeFLAC(data []byte) (*Track, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Codec: "flac", Err: err}
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)
	if channels == 0 || bitDepth == 0 {
		return nil, &DecodeError{Codec: "flac", Err: fmt.Errorf("invalid stream info: %d channels, %d bits", channels, bitDepth)}
	}

	var pcm bytes.Buffer
	var sample [2]byte
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DecodeError{Codec: "flac", Err: err}
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < 2; ch++ {
				// Mono is duplicated, extra channels are dropped
				src := ch
				if src >= channels {
					src = channels - 1
				}
				s := to16Bit(frame.Subframes[src].Samples[i], bitDepth)
				binary.LittleEndian.PutUint16(sample[:], uint16(s))
				pcm.Write(sample[:])
			}
		}
	}

	if pcm.Len() == 0 {
		return nil, &DecodeError{Codec: "flac", Err: errors.New("no audio frames")}
	}

	track := &Track{
		SampleRate: int(info.SampleRate),
		Channels:   2,
		PCM:        pcm.Bytes(),
	}

	log.Printf("Decoded FLAC: %dHz, %d channels, %d-bit, %v",
		track.SampleRate, channels, bitDepth, track.Duration())
	return track, nil
}

// to16Bit scales a sample of the given bit depth to the 16-bit range
func to16Bit(sample int32, bitDepth int) int16 {
	shift := bitDepth - 16
	if shift > 0 {
		return int16(sample >> shift)
	}
	return int16(sample << -shift)
}
