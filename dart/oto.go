//go:build oto

package dart

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/gen2brain/pcmout"
)

func init() {
	RegisterService("oto", func() Mixer { return &otoMixer{} })
}

// oto allows a single context per process, so every stream shares the first
// one that was created successfully and plays at its rate.
var (
	otoMu   sync.Mutex
	otoCtx  *oto.Context
	otoRate uint32
)

func otoContext(rate uint32, bufferSize int) (*oto.Context, uint32, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		return otoCtx, otoRate, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   int(rate),
		ChannelCount: pcmout.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	if rate > 0 {
		op.BufferSize = time.Duration(bufferSize/pcmout.FrameSize) * time.Second / time.Duration(rate)
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		// Not cached, a later Open tries again.
		return nil, 0, fmt.Errorf("%w: failed to create oto context: %w", pcmout.ErrDeviceUnavailable, err)
	}

	<-ready

	otoCtx, otoRate = ctx, rate

	return otoCtx, otoRate, nil
}

// otoMixer plays slots through an oto player that pulls from a queue.
type otoMixer struct {
	queue  *pullQueue
	player *oto.Player
}

func (m *otoMixer) Setup(format Format, done func(err error)) (uint32, error) {
	if format.Bits != 16 || format.Channels != pcmout.Channels {
		return 0, fmt.Errorf("oto: unsupported format %d bits, %d channels", format.Bits, format.Channels)
	}

	ctx, rate, err := otoContext(format.Rate, format.BufferSize)
	if err != nil {
		return 0, err
	}

	m.queue = newPullQueue(done)
	m.player = ctx.NewPlayer(m)
	m.player.Play()

	return rate, nil
}

// Read implements io.Reader for the oto player. It never ends the stream.
func (m *otoMixer) Read(p []byte) (int, error) {
	// Keep whole samples so the player never splits one.
	p = p[:len(p)&^1]

	return m.queue.read(p), nil
}

func (m *otoMixer) Submit(buf []byte) error {
	return m.queue.push(buf)
}

func (m *otoMixer) Close() error {
	if m.queue != nil {
		m.queue.close()
	}

	if m.player == nil {
		return nil
	}

	err := m.player.Close()
	m.player = nil

	return err
}
