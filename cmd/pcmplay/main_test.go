package main

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordStream struct {
	data    []byte
	paused  int
	resumed int
}

func (r *recordStream) Write(_ context.Context, p []byte) error {
	r.data = append(r.data, p...)

	return nil
}

func (r *recordStream) Pause() error  { r.paused++; return nil }
func (r *recordStream) Resume() error { r.resumed++; return nil }
func (r *recordStream) Close() error  { return nil }
func (r *recordStream) Rate() uint32  { return 8000 }

func TestEncodeClamps(t *testing.T) {
	buf := make([]byte, 8)
	out := encode(buf, [][2]float64{{1.5, -2}, {0, 0.5}})
	require.Len(t, out, 8)

	sample := func(i int) int16 { return int16(binary.NativeEndian.Uint16(out[i*2:])) }
	assert.Equal(t, int16(32767), sample(0))
	assert.Equal(t, int16(-32767), sample(1))
	assert.Equal(t, int16(0), sample(2))
	assert.Equal(t, int16(16384), sample(3))
}

func TestPlayTone(t *testing.T) {
	stream := &recordStream{}
	rate := beep.SampleRate(8000)

	frames, err := play(context.Background(), stream, toneSource(rate, 440, 100*time.Millisecond, 0), 400, time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, 800, frames)
	assert.Len(t, stream.data, 800*4)
	assert.Equal(t, 1, stream.paused)
	assert.Equal(t, 1, stream.resumed)
}

func TestPlayCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := &recordStream{}
	_, err := play(ctx, stream, toneSource(8000, 440, time.Second, 0), 1, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
