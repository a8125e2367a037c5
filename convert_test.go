package pcmout_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/pcmout"
)

func samplesToBytes(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.NativeEndian.PutUint16(b[i*2:], uint16(s))
	}

	return b
}

func TestConvertU8Stereo(t *testing.T) {
	src := samplesToBytes(1000, -1000, 2000, -2000)
	dst := make([]byte, pcmout.ConvertedLen(len(src), pcmout.ModeU8Stereo))

	n := pcmout.Convert(dst, src, pcmout.ModeU8Stereo)
	require.Equal(t, 4, n)

	// 1000>>8 = 3, -1000>>8 = -4, 2000>>8 = 7, -2000>>8 = -8
	assert.Equal(t, []byte{131, 124, 135, 120}, dst[:n])
}

func TestConvertU8Mono(t *testing.T) {
	src := samplesToBytes(1000, -1000, 2000, 2000, -32768, -32768, 32767, 32767)
	dst := make([]byte, pcmout.ConvertedLen(len(src), pcmout.ModeU8Mono))

	n := pcmout.Convert(dst, src, pcmout.ModeU8Mono)
	require.Equal(t, 4, n)

	// (0>>9)+128, (4000>>9)+128, (-65536>>9)+128, (65534>>9)+128
	assert.Equal(t, []byte{128, 135, 0, 255}, dst[:n])
}

func TestConvertS16Passthrough(t *testing.T) {
	src := samplesToBytes(1, -2, 3, -4)
	dst := make([]byte, len(src))

	n := pcmout.Convert(dst, src, pcmout.ModeS16Stereo)
	assert.Equal(t, len(src), n)
	assert.Equal(t, src, dst)
}

func TestConvertInPlace(t *testing.T) {
	buf := samplesToBytes(-32768, 32767, 0, 256)

	n := pcmout.Convert(buf, buf, pcmout.ModeU8Stereo)
	assert.Equal(t, []byte{0, 255, 128, 129}, buf[:n])
}

func TestConvertDropsPartialFrame(t *testing.T) {
	src := append(samplesToBytes(256, 256), 0x01, 0x02)

	assert.Equal(t, 2, pcmout.ConvertedLen(len(src), pcmout.ModeU8Stereo))
	assert.Equal(t, 1, pcmout.ConvertedLen(len(src), pcmout.ModeU8Mono))
	assert.Equal(t, 4, pcmout.ConvertedLen(len(src), pcmout.ModeS16Stereo))

	dst := make([]byte, 4)
	assert.Equal(t, 4, pcmout.Convert(dst, src, pcmout.ModeS16Stereo))
}

func TestSampleModeSilence(t *testing.T) {
	assert.Equal(t, byte(0x00), pcmout.ModeS16Stereo.Silence())
	assert.Equal(t, byte(0x80), pcmout.ModeU8Stereo.Silence())
	assert.Equal(t, byte(0x80), pcmout.ModeU8Mono.Silence())
	assert.Equal(t, "U8 mono", pcmout.ModeU8Mono.String())
}
