package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildWAV assembles a minimal 16-bit PCM WAV from raw samples.
func buildWAV(t *testing.T, sampleRate int, channels int, samples []int16) []byte {
	t.Helper()

	var data bytes.Buffer
	for _, s := range samples {
		require.NoError(t, binary.Write(&data, binary.LittleEndian, s))
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(36+data.Len())))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(16)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(1))) // PCM
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(channels)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(sampleRate)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(channels*2)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(16)))

	buf.WriteString("data")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(data.Len())))
	buf.Write(data.Bytes())

	return buf.Bytes()
}

func TestDecodeWAV(t *testing.T) {
	samples := []int16{0, 16384, -16384, 32767}
	wav := buildWAV(t, 16000, 1, samples)

	pcm, err := DecodeWAV(bytes.NewReader(wav))
	require.NoError(t, err)

	assert.Equal(t, 16000, pcm.SampleRate)
	require.Len(t, pcm.Samples, 4)
	assert.InDelta(t, 0, pcm.Samples[0], 1e-9)
	assert.InDelta(t, 0.5, pcm.Samples[1], 1e-3)
	assert.InDelta(t, -0.5, pcm.Samples[2], 1e-3)
}

func TestDecodeWAV_RejectsNonPCM(t *testing.T) {
	wav := buildWAV(t, 16000, 1, []int16{0})
	// Flip the audio format field to IEEE float.
	wav[20] = 3

	_, err := DecodeWAV(bytes.NewReader(wav))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeWAV_RejectsGarbage(t *testing.T) {
	_, err := DecodeWAV(bytes.NewReader([]byte("definitely not audio")))
	assert.Error(t, err)
}

func TestFrameEnergy(t *testing.T) {
	// 1s of silence followed by 1s of a loud square wave at 1 kHz rate.
	rate := 1000
	samples := make([]int16, 2*rate)
	for i := rate; i < 2*rate; i++ {
		samples[i] = 20000
	}
	wav := buildWAV(t, rate, 1, samples)

	pcm, err := DecodeWAV(bytes.NewReader(wav))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, pcm.Duration(), 1e-9)

	energy := pcm.FrameEnergy(0.1)
	require.Len(t, energy.Frames, 20)

	// First second quiet, second second loud.
	assert.Less(t, energy.At(0.5), 0.01)
	assert.Greater(t, energy.At(1.5), 0.5)
	assert.Greater(t, energy.At(1.5), energy.At(0.5))
}

func TestEnergyAt_Clamps(t *testing.T) {
	e := &Energy{FrameDur: 0.1, Frames: []float64{0.1, 0.2, 0.3}}
	assert.Equal(t, 0.1, e.At(-5))
	assert.Equal(t, 0.3, e.At(100))
	assert.InDelta(t, 0.3, e.Duration(), 1e-9)
}

func TestDecodeWAV_StereoDownmix(t *testing.T) {
	// Left 0.5, right -0.5 -> mono 0.
	wav := buildWAV(t, 8000, 2, []int16{16384, -16384, 16384, -16384})
	pcm, err := DecodeWAV(bytes.NewReader(wav))
	require.NoError(t, err)
	require.Len(t, pcm.Samples, 2)
	assert.True(t, math.Abs(pcm.Samples[0]) < 1e-6)
}
