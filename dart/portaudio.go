//go:build portaudio

package dart

import (
	"encoding/binary"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/gen2brain/pcmout"
)

func init() {
	RegisterService("portaudio", func() Mixer { return &portaudioMixer{} })
}

// portaudioMixer plays slots through the default PortAudio output device.
type portaudioMixer struct {
	stream      *portaudio.Stream
	queue       *pullQueue
	scratch     []byte
	initialized bool
}

func (m *portaudioMixer) Setup(format Format, done func(err error)) (uint32, error) {
	if format.Bits != 16 || format.Channels != pcmout.Channels {
		return 0, fmt.Errorf("portaudio: unsupported format %d bits, %d channels", format.Bits, format.Channels)
	}

	if err := portaudio.Initialize(); err != nil {
		return 0, fmt.Errorf("%w: failed to initialize portaudio: %w", pcmout.ErrDeviceUnavailable, err)
	}

	m.initialized = true
	m.queue = newPullQueue(done)

	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.Rate), 0, m.callback)
	if err != nil {
		return 0, fmt.Errorf("portaudio: failed to open stream: %w", err)
	}

	m.stream = stream

	if err := stream.Start(); err != nil {
		return 0, fmt.Errorf("portaudio: failed to start stream: %w", err)
	}

	return uint32(stream.Info().SampleRate), nil
}

// callback runs on the PortAudio thread.
func (m *portaudioMixer) callback(out []int16) {
	if cap(m.scratch) < len(out)*2 {
		m.scratch = make([]byte, len(out)*2)
	}

	b := m.scratch[:len(out)*2]
	m.queue.read(b)

	for i := range out {
		out[i] = int16(binary.NativeEndian.Uint16(b[i*2:]))
	}
}

func (m *portaudioMixer) Submit(buf []byte) error {
	return m.queue.push(buf)
}

func (m *portaudioMixer) Close() error {
	if m.queue != nil {
		m.queue.close()
	}

	var err error
	if m.stream != nil {
		_ = m.stream.Stop()
		err = m.stream.Close()
		m.stream = nil
	}

	if m.initialized {
		m.initialized = false
		if terr := portaudio.Terminate(); err == nil {
			err = terr
		}
	}

	return err
}
