package dart

import (
	"encoding/binary"
	"fmt"

	"github.com/jfreymuth/pulse"

	"github.com/gen2brain/pcmout"
)

func init() {
	RegisterService("pulse", func() Mixer { return &pulseMixer{} })
}

// pulseMixer plays slots through a PulseAudio playback stream.
type pulseMixer struct {
	client  *pulse.Client
	stream  *pulse.PlaybackStream
	queue   *pullQueue
	scratch []byte
}

func (m *pulseMixer) Setup(format Format, done func(err error)) (uint32, error) {
	if format.Bits != 16 || format.Channels != pcmout.Channels {
		return 0, fmt.Errorf("pulse: unsupported format %d bits, %d channels", format.Bits, format.Channels)
	}

	client, err := pulse.NewClient(pulse.ClientApplicationName("pcmout"))
	if err != nil {
		return 0, fmt.Errorf("%w: pulse: %w", pcmout.ErrDeviceUnavailable, err)
	}

	m.client = client
	m.queue = newPullQueue(done)

	latency := 0.25
	if format.Rate > 0 {
		latency = float64(format.BufferSize/pcmout.FrameSize) / float64(format.Rate)
	}

	stream, err := client.NewPlayback(
		pulse.Int16Reader(m.read),
		pulse.PlaybackSampleRate(int(format.Rate)),
		pulse.PlaybackStereo,
		pulse.PlaybackLatency(latency),
	)
	if err != nil {
		return 0, fmt.Errorf("pulse: failed to create playback stream: %w", err)
	}

	m.stream = stream
	m.stream.Start()

	return uint32(stream.SampleRate()), nil
}

// read is the stream callback. It runs on the client's goroutine.
func (m *pulseMixer) read(out []int16) (int, error) {
	if cap(m.scratch) < len(out)*2 {
		m.scratch = make([]byte, len(out)*2)
	}

	b := m.scratch[:len(out)*2]
	m.queue.read(b)

	for i := range out {
		out[i] = int16(binary.NativeEndian.Uint16(b[i*2:]))
	}

	return len(out), nil
}

func (m *pulseMixer) Submit(buf []byte) error {
	return m.queue.push(buf)
}

func (m *pulseMixer) Close() error {
	if m.queue != nil {
		m.queue.close()
	}

	if m.stream != nil {
		m.stream.Stop()
		m.stream.Close()
		m.stream = nil
	}

	if m.client != nil {
		m.client.Close()
		m.client = nil
	}

	return nil
}
