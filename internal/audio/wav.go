// Package audio reads the 16-bit PCM WAV files produced by the ffmpeg
// preprocessing step and computes frame energy for the enhancement
// components. It is not a general-purpose WAV decoder: transcription
// sources are normalized to 16 kHz mono pcm_s16le before any component
// sees them.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ErrUnsupportedFormat is returned for anything other than 16-bit PCM.
var ErrUnsupportedFormat = errors.New("unsupported wav format")

// PCM holds decoded mono samples.
type PCM struct {
	SampleRate int
	Samples    []float64 // normalized to [-1, 1]
}

// Duration returns the clip length in seconds.
func (p *PCM) Duration() float64 {
	if p.SampleRate == 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate)
}

// ReadWAV decodes a 16-bit PCM WAV file. Multi-channel input is downmixed
// to mono by averaging.
func ReadWAV(path string) (*PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

// DecodeWAV decodes a 16-bit PCM WAV stream.
func DecodeWAV(r io.Reader) (*PCM, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE stream", ErrUnsupportedFormat)
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		haveFmt       bool
	)

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("%w: no data chunk", ErrUnsupportedFormat)
			}
			return nil, err
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, err
			}
			if len(body) < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			if format != 1 || bitsPerSample != 16 {
				return nil, fmt.Errorf("%w: format=%d bits=%d", ErrUnsupportedFormat, format, bitsPerSample)
			}
			if channels < 1 || sampleRate <= 0 {
				return nil, fmt.Errorf("%w: channels=%d rate=%d", ErrUnsupportedFormat, channels, sampleRate)
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data before fmt", ErrUnsupportedFormat)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, err
			}
			return decodeSamples(body, channels, sampleRate), nil

		default:
			// Skip LIST/INFO and other chunks.
			if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
				return nil, err
			}
		}
	}
}

func decodeSamples(body []byte, channels, sampleRate int) *PCM {
	frameBytes := 2 * channels
	n := len(body) / frameBytes
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			off := i*frameBytes + c*2
			s := int16(binary.LittleEndian.Uint16(body[off : off+2]))
			sum += float64(s) / 32768.0
		}
		samples[i] = sum / float64(channels)
	}
	return &PCM{SampleRate: sampleRate, Samples: samples}
}

// Energy holds per-frame RMS energy over fixed-size windows.
type Energy struct {
	FrameDur float64 // seconds per frame
	Frames   []float64
}

// FrameEnergy computes RMS energy over non-overlapping frames of the given
// duration (seconds).
func (p *PCM) FrameEnergy(frameDur float64) *Energy {
	frameLen := int(frameDur * float64(p.SampleRate))
	if frameLen < 1 {
		frameLen = 1
	}
	n := (len(p.Samples) + frameLen - 1) / frameLen
	frames := make([]float64, 0, n)
	for start := 0; start < len(p.Samples); start += frameLen {
		end := start + frameLen
		if end > len(p.Samples) {
			end = len(p.Samples)
		}
		var sum float64
		for _, s := range p.Samples[start:end] {
			sum += s * s
		}
		frames = append(frames, math.Sqrt(sum/float64(end-start)))
	}
	return &Energy{FrameDur: frameDur, Frames: frames}
}

// At returns the energy of the frame containing time t, clamping to the
// clip bounds.
func (e *Energy) At(t float64) float64 {
	if len(e.Frames) == 0 {
		return 0
	}
	idx := int(t / e.FrameDur)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(e.Frames) {
		idx = len(e.Frames) - 1
	}
	return e.Frames[idx]
}

// Duration returns the analyzed span in seconds.
func (e *Energy) Duration() float64 {
	return float64(len(e.Frames)) * e.FrameDur
}
