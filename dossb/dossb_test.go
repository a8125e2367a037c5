package dossb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/pcmout"
)

// fakeCard simulates the DMA read cursor: every Position call plays step more
// bytes of the buffer and records them.
type fakeCard struct {
	mu       sync.Mutex
	caps     Caps
	mono     uint32
	stereo   uint32
	buf      []byte
	pos      int
	step     int
	played   []byte
	output   bool
	started  bool
	startErr error
	rate     uint32
	bits16   bool
	stereoOn bool
	stops    int
	closes   int
}

func newFakeCard(caps Caps, size, step int) *fakeCard {
	return &fakeCard{caps: caps, mono: 44100, stereo: 22050, buf: make([]byte, size), step: step}
}

func (c *fakeCard) Caps() Caps { return c.caps }

func (c *fakeCard) MaxRate(stereo bool) uint32 {
	if stereo {
		return c.stereo
	}

	return c.mono
}

func (c *fakeCard) SetOutput(enable bool) { c.output = enable }

func (c *fakeCard) StartDMA(rate uint32, bits16, stereo bool) error {
	if c.startErr != nil {
		return c.startErr
	}

	c.started, c.rate, c.bits16, c.stereoOn = true, rate, bits16, stereo

	return nil
}

func (c *fakeCard) StopDMA()        { c.started = false; c.stops++ }
func (c *fakeCard) BufferSize() int { return len(c.buf) }
func (c *fakeCard) Close() error    { c.closes++; return nil }

func (c *fakeCard) WriteAt(p []byte, off int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if off < 0 || int(off)+len(p) > len(c.buf) {
		return 0, errors.New("out of range")
	}

	return copy(c.buf[off:], p), nil
}

func (c *fakeCard) Fill(b byte) {
	for i := range c.buf {
		c.buf[i] = b
	}
}

func (c *fakeCard) Position() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.play(c.step)

	return c.pos
}

// play moves the cursor n bytes forward.
func (c *fakeCard) play(n int) {
	for ; n > 0; n-- {
		c.played = append(c.played, c.buf[c.pos])
		c.pos = (c.pos + 1) % len(c.buf)
	}
}

func testConfig(rate uint32) pcmout.Config {
	return pcmout.Config{
		Rate:         rate,
		WriteTimeout: time.Second,
		PollInterval: time.Millisecond,
		Logger:       pcmout.Discard,
	}
}

// frames returns S16 stereo data whose samples count up from 1.
func frames(n int) []byte {
	b := make([]byte, 0, n*pcmout.FrameSize)
	for i := 0; i < n*pcmout.Channels; i++ {
		s := uint16(i + 1)
		b = append(b, byte(s), byte(s>>8))
	}

	return b
}

func TestRegistered(t *testing.T) {
	d, ok := pcmout.Lookup(DriverName)
	require.True(t, ok)
	assert.Equal(t, "Sound Blaster DMA output", d.Description)
}

func TestOpenModes(t *testing.T) {
	testCases := []struct {
		name   string
		caps   Caps
		mode   pcmout.SampleMode
		bits16 bool
		stereo bool
	}{
		{name: "sb16", caps: Caps16Bit | CapsStereo, mode: pcmout.ModeS16Stereo, bits16: true, stereo: true},
		{name: "sbpro", caps: CapsStereo, mode: pcmout.ModeU8Stereo, stereo: true},
		{name: "sb", caps: 0, mode: pcmout.ModeU8Mono},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			card := newFakeCard(tc.caps, 1024, 256)

			s, err := open(testConfig(11025), card)
			require.NoError(t, err)

			assert.Equal(t, tc.mode, s.Mode())
			assert.True(t, card.output)
			assert.True(t, card.started)
			assert.Equal(t, tc.bits16, card.bits16)
			assert.Equal(t, tc.stereo, card.stereoOn)
			assert.Equal(t, uint32(11025), card.rate)
			assert.Equal(t, 0, s.tail)
		})
	}
}

func TestOpenRateClamp(t *testing.T) {
	s, err := open(testConfig(1000), newFakeCard(CapsStereo, 1024, 256))
	require.NoError(t, err)
	assert.Equal(t, uint32(MinRate), s.Rate())

	s, err = open(testConfig(0), newFakeCard(0, 1024, 256))
	require.NoError(t, err)
	assert.Equal(t, uint32(MinRate), s.Rate())

	// Stereo cards are limited by their stereo rate, mono cards by the mono rate.
	s, err = open(testConfig(48000), newFakeCard(CapsStereo, 1024, 256))
	require.NoError(t, err)
	assert.Equal(t, uint32(22050), s.Rate())

	s, err = open(testConfig(48000), newFakeCard(0, 1024, 256))
	require.NoError(t, err)
	assert.Equal(t, uint32(44100), s.Rate())
}

func TestOpenStartDMAFails(t *testing.T) {
	card := newFakeCard(CapsStereo, 1024, 256)
	card.startErr = errors.New("no DMA channel")

	s, err := open(testConfig(22050), card)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, pcmout.ErrDeviceConfig)
	assert.False(t, card.output)
	assert.Equal(t, 1, card.closes)
}

func TestOpenCloseWithoutWrite(t *testing.T) {
	card := newFakeCard(Caps16Bit|CapsStereo, 1024, 256)

	s, err := open(testConfig(44100), card)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.False(t, card.output)
	assert.Equal(t, 1, card.stops)
	assert.Equal(t, 1, card.closes)

	assert.ErrorIs(t, s.Write(context.Background(), frames(1)), pcmout.ErrClosed)
	assert.ErrorIs(t, s.Pause(), pcmout.ErrClosed)
}

func TestWriteMarkersInOrder(t *testing.T) {
	const size = 4096

	card := newFakeCard(Caps16Bit|CapsStereo, size, 300)
	s, err := open(testConfig(44100), card)
	require.NoError(t, err)
	defer s.Close()

	data := frames(5000)
	for rest := data; len(rest) > 0; {
		n := min(len(rest), 1000*pcmout.FrameSize)
		require.NoError(t, s.Write(context.Background(), rest[:n]))
		rest = rest[n:]
	}

	// Play one more lap so everything queued comes out.
	card.play(size)

	require.GreaterOrEqual(t, len(card.played), size+len(data))
	assert.Equal(t, make([]byte, size), card.played[:size], "the first lap is the initial buffer")
	assert.Equal(t, data, card.played[size:size+len(data)])
}

func TestCloseWaitsForPlayback(t *testing.T) {
	const size = 1024

	card := newFakeCard(Caps16Bit|CapsStereo, size, 64)
	s, err := open(testConfig(44100), card)
	require.NoError(t, err)

	data := frames(200)
	require.NoError(t, s.Write(context.Background(), data))
	require.NoError(t, s.Close())

	require.GreaterOrEqual(t, len(card.played), size+len(data), "close lets the written audio play")
	assert.Equal(t, data, card.played[size:size+len(data)])
	assert.False(t, card.output)
	assert.Equal(t, 1, card.closes)
}

func TestCloseDrainTimeout(t *testing.T) {
	card := newFakeCard(Caps16Bit|CapsStereo, 1024, 256)
	cfg := testConfig(44100)
	cfg.WriteTimeout = 20 * time.Millisecond

	s, err := open(cfg, card)
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), frames(16)))

	// The card stalls.
	card.mu.Lock()
	card.step = 0
	card.mu.Unlock()

	start := time.Now()
	require.NoError(t, s.Close())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, card.closes)
}

func TestWriteConvertsIntoRing(t *testing.T) {
	const size = 1024

	card := newFakeCard(CapsStereo, size, 256)
	s, err := open(testConfig(22050), card)
	require.NoError(t, err)
	defer s.Close()

	data := make([]byte, 0, 800*pcmout.FrameSize)
	for i := 0; i < 800; i++ {
		data = append(data, 0x00, 0x01, 0x00, 0xff) // 256, -256 in little endian
	}

	orig := append([]byte{}, data...)
	require.NoError(t, s.Write(context.Background(), data))
	assert.Equal(t, orig, data, "input is not modified")

	card.play(size)

	want := make([]byte, 0, 1600)
	for i := 0; i < 800; i++ {
		want = append(want, 129, 127)
	}

	assert.Equal(t, want, card.played[size:size+len(want)])
}

func TestFillWrap(t *testing.T) {
	card := newFakeCard(Caps16Bit|CapsStereo, 1024, 0)
	s, err := open(testConfig(44100), card)
	require.NoError(t, err)

	s.tail = 768
	card.pos = 600 // aligned down to 512

	p := make([]byte, 600)
	for i := range p {
		p[i] = byte(i%250 + 1)
	}

	n, err := s.fill(p)
	require.NoError(t, err)
	assert.Equal(t, 600, n)
	assert.Equal(t, 344, s.tail)
	assert.Equal(t, p[:256], card.buf[768:])
	assert.Equal(t, p[256:], card.buf[:344])

	// Tail caught up with the position: nothing fits.
	s.tail = 512
	n, err = s.fill(p)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Limited by the position when it is ahead of the tail.
	s.tail = 0
	n, err = s.fill(p)
	require.NoError(t, err)
	assert.Equal(t, 512, n)
	assert.Equal(t, 512, s.tail)
}

func TestFillWrapStopsAtPosition(t *testing.T) {
	card := newFakeCard(Caps16Bit|CapsStereo, 1024, 0)
	s, err := open(testConfig(44100), card)
	require.NoError(t, err)

	s.tail = 1024 - 128
	card.pos = 256

	n, err := s.fill(make([]byte, 2048))
	require.NoError(t, err)
	assert.Equal(t, 128+256, n)
	assert.Equal(t, 256, s.tail)
}

func TestPauseSilence(t *testing.T) {
	card := newFakeCard(Caps16Bit|CapsStereo, 1024, 0)
	card.Fill(0x55)

	s, err := open(testConfig(44100), card)
	require.NoError(t, err)
	require.NoError(t, s.Pause())
	assert.Equal(t, make([]byte, 1024), card.buf)
	require.NoError(t, s.Resume())

	card = newFakeCard(CapsStereo, 1024, 0)
	card.Fill(0x55)

	s, err = open(testConfig(22050), card)
	require.NoError(t, err)
	require.NoError(t, s.Pause())
	for _, b := range card.buf {
		require.Equal(t, byte(0x80), b)
	}
}

func TestWriteTimeout(t *testing.T) {
	card := newFakeCard(Caps16Bit|CapsStereo, 1024, 0)
	cfg := testConfig(44100)
	cfg.WriteTimeout = 20 * time.Millisecond

	s, err := open(cfg, card)
	require.NoError(t, err)
	defer s.Close()

	assert.ErrorIs(t, s.Write(context.Background(), frames(16)), pcmout.ErrDeviceTimeout)
}

func TestWriteCanceled(t *testing.T) {
	card := newFakeCard(Caps16Bit|CapsStereo, 1024, 0)
	s, err := open(testConfig(44100), card)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, s.Write(ctx, frames(16)), context.DeadlineExceeded)
}

func TestWriteShortFrame(t *testing.T) {
	card := newFakeCard(Caps16Bit|CapsStereo, 1024, 256)
	s, err := open(testConfig(44100), card)
	require.NoError(t, err)
	defer s.Close()

	assert.ErrorIs(t, s.Write(context.Background(), make([]byte, 7)), pcmout.ErrShortFrame)
}
