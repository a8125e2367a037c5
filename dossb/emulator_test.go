package dossb

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/pcmout"
)

func TestOpenEmulator(t *testing.T) {
	e, err := OpenEmulator("", nil)
	require.NoError(t, err)
	assert.Equal(t, "sb16", e.Model().Name)
	assert.True(t, e.Caps().Has(Caps16Bit|CapsStereo))
	assert.Equal(t, EmulatorBufferSize, e.BufferSize())

	e, err = OpenEmulator("SBPro:out.wav", nil)
	require.NoError(t, err)
	assert.Equal(t, "sbpro", e.Model().Name)
	assert.Equal(t, "out.wav", e.path)
	assert.Equal(t, uint32(22050), e.MaxRate(true))
	assert.Equal(t, uint32(44100), e.MaxRate(false))

	_, err = OpenEmulator("gus", nil)
	assert.ErrorIs(t, err, pcmout.ErrDeviceUnavailable)
}

func TestModels(t *testing.T) {
	list := Models()
	require.Len(t, list, 3)
	assert.Equal(t, "sb", list[0].Name)
	assert.Equal(t, "sb16", list[1].Name)
	assert.Equal(t, "sbpro", list[2].Name)
}

func TestEmulatorStartDMAChecks(t *testing.T) {
	e, err := OpenEmulator("sb", nil)
	require.NoError(t, err)
	defer e.Close()

	assert.Error(t, e.StartDMA(22050, true, false), "no 16-bit on a Sound Blaster 2.0")
	assert.Error(t, e.StartDMA(22050, false, true), "no stereo on a Sound Blaster 2.0")
	assert.Error(t, e.StartDMA(44100, false, false), "above the mono limit")

	require.NoError(t, e.StartDMA(22050, false, false))
	assert.Error(t, e.StartDMA(22050, false, false), "already running")
}

func TestEmulatorPlays(t *testing.T) {
	e, err := OpenEmulator("sb16", nil)
	require.NoError(t, err)

	require.NoError(t, e.StartDMA(44100, true, true))

	require.Eventually(t, func() bool {
		return e.Played() >= 4*1024
	}, 2*time.Second, time.Millisecond)

	assert.Less(t, e.Position(), EmulatorBufferSize)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.WriteAt([]byte{1}, 0)
	assert.ErrorIs(t, err, pcmout.ErrClosed)
	assert.ErrorIs(t, e.StartDMA(44100, true, true), pcmout.ErrClosed)
}

func TestEmulatorWriteAtBounds(t *testing.T) {
	e, err := OpenEmulator("sb16", nil)
	require.NoError(t, err)
	defer e.Close()

	n, err := e.WriteAt([]byte{1, 2, 3}, EmulatorBufferSize-3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = e.WriteAt([]byte{1, 2, 3}, EmulatorBufferSize-2)
	assert.Error(t, err)

	_, err = e.WriteAt([]byte{1}, -1)
	assert.Error(t, err)
}

func TestEmulatorAdvanceWraps(t *testing.T) {
	e, err := OpenEmulator("sb", nil)
	require.NoError(t, err)
	defer e.Close()

	e.frame = 1
	e.advance(EmulatorBufferSize - 10)
	assert.Equal(t, EmulatorBufferSize-10, e.Position())

	e.advance(EmulatorBufferSize + 20)
	assert.Equal(t, 20, e.Position())
	assert.Equal(t, int64(EmulatorBufferSize+20), e.Played())
}

func TestDriverRecordsToWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sb.wav")

	stream, err := pcmout.Open(pcmout.Config{
		Driver:       DriverName,
		Device:       "sb:" + path,
		Rate:         8000,
		WriteTimeout: 2 * time.Second,
		PollInterval: time.Millisecond,
		Logger:       pcmout.Discard,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(8000), stream.Rate())

	// A fifth of a second of audio.
	require.NoError(t, stream.Write(context.Background(), frames(1600)))
	require.NoError(t, stream.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	require.NoError(t, dec.Err())

	assert.True(t, dec.IsValidFile())
	assert.Equal(t, uint32(8000), dec.SampleRate)
	assert.Equal(t, uint16(1), dec.NumChans)
	assert.Equal(t, uint16(8), dec.BitDepth)

	duration, err := dec.Duration()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, duration, 200*time.Millisecond)
}

func TestDriverRecordsLastLap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sb.wav")

	stream, err := pcmout.Open(pcmout.Config{
		Driver:       DriverName,
		Device:       "sb:" + path,
		Rate:         8000,
		WriteTimeout: 2 * time.Second,
		PollInterval: time.Millisecond,
		Logger:       pcmout.Discard,
	})
	require.NoError(t, err)

	// Every frame converts to the unsigned mono byte 192.
	data := make([]byte, 1600*pcmout.FrameSize)
	for i := 0; i < len(data); i += 2 {
		binary.NativeEndian.PutUint16(data[i:], 0x4000)
	}

	require.NoError(t, stream.Write(context.Background(), data))
	require.NoError(t, stream.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.True(t, bytes.Contains(raw, bytes.Repeat([]byte{192}, 1600)), "the recording holds every written frame")
}
