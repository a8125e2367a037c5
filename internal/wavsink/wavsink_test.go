package wavsink

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/pcmout"
)

func TestWriteS16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s16.wav")

	w, err := Create(path, 22050, pcmout.ModeS16Stereo)
	require.NoError(t, err)

	samples := []int16{100, -100, 32767, -32768}
	p := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.NativeEndian.PutUint16(p[i*2:], uint16(s))
	}

	n, err := w.Write(p)
	require.NoError(t, err)
	assert.Equal(t, len(p), n)
	assert.Equal(t, 2, w.Frames())

	_, err = w.Write(p[:3])
	assert.ErrorIs(t, err, pcmout.ErrShortFrame)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write(p)
	assert.ErrorIs(t, err, pcmout.ErrClosed)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, uint32(22050), dec.SampleRate)
	assert.Equal(t, uint16(2), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)
	assert.Equal(t, []int{100, -100, 32767, -32768}, buf.Data)
}

func TestWriteU8Mono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u8.wav")

	w, err := Create(path, 8000, pcmout.ModeU8Mono)
	require.NoError(t, err)

	_, err = w.Write([]byte{0x80, 0x00, 0xff})
	require.NoError(t, err)
	assert.Equal(t, 3, w.Frames())
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	require.NoError(t, dec.Err())

	assert.Equal(t, uint16(1), dec.NumChans)
	assert.Equal(t, uint16(8), dec.BitDepth)
}

func TestCreateFails(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing", "out.wav"), 44100, pcmout.ModeS16Stereo)
	assert.Error(t, err)
}
