package dart

import (
	"errors"
	"sort"
	"sync"

	"github.com/gen2brain/pcmout"
)

// ErrUnderrun may be reported to the done callback when the mixer ran out of data.
// It is not treated as a failure.
var ErrUnderrun = errors.New("mixer underrun")

// Format describes the stream a mixer is set up for.
type Format struct {
	Rate     uint32
	Channels int
	Bits     int
	// BufferSize is the size of every submitted buffer in bytes.
	// The last buffer submitted before Close may be shorter.
	BufferSize int
}

// Mixer is an OS mixer service that plays a queue of fixed-size buffers.
type Mixer interface {
	// Setup prepares playback and returns the sample rate the service accepted.
	// done is called once per submitted buffer, in submission order, from the
	// service's own goroutine after the buffer has been consumed.
	Setup(format Format, done func(err error)) (uint32, error)
	// Submit queues buf for playback. The service owns buf until done reports it.
	Submit(buf []byte) error
	// Close stops playback. After Close returns the service reads no buffer.
	// It must be safe to call after a failed Setup.
	Close() error
}

// servicePreference is the order in which DefaultService picks a registered service.
var servicePreference = []string{"oto", "pulse", "portaudio"}

var (
	servicesMu sync.RWMutex
	services   = make(map[string]func() Mixer)
)

// RegisterService makes a mixer service selectable by device name.
// It panics if the name is empty, newMixer is nil or the name is already taken.
func RegisterService(name string, newMixer func() Mixer) {
	servicesMu.Lock()
	defer servicesMu.Unlock()

	if name == "" {
		panic("dart: RegisterService with empty name")
	}

	if newMixer == nil {
		panic("dart: RegisterService " + name + " with nil constructor")
	}

	if _, dup := services[name]; dup {
		panic("dart: RegisterService called twice for " + name)
	}

	services[name] = newMixer
}

func lookupService(name string) (func() Mixer, bool) {
	servicesMu.RLock()
	defer servicesMu.RUnlock()

	fn, ok := services[name]

	return fn, ok
}

// DefaultService returns the service used when the config names no device:
// oto when built with the oto tag, PulseAudio otherwise.
func DefaultService() string {
	servicesMu.RLock()
	defer servicesMu.RUnlock()

	for _, name := range servicePreference {
		if _, ok := services[name]; ok {
			return name
		}
	}

	return ""
}

// Services returns the registered mixer service names, sorted.
func Services() []string {
	servicesMu.RLock()
	defer servicesMu.RUnlock()

	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// pullQueue adapts buffer submission to services that pull samples from a callback.
// Buffers are consumed in order; done fires for each one once it has been read completely.
// When the queue runs dry the reader gets silence.
type pullQueue struct {
	mu        sync.Mutex
	bufs      [][]byte
	off       int
	done      func(error)
	underruns int
	closed    bool
}

func newPullQueue(done func(error)) *pullQueue {
	return &pullQueue{done: done}
}

func (q *pullQueue) push(buf []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return pcmout.ErrClosed
	}

	q.bufs = append(q.bufs, buf)

	return nil
}

// read fills p completely and returns len(p).
func (q *pullQueue) read(p []byte) int {
	q.mu.Lock()

	n, completed := 0, 0
	for n < len(p) && len(q.bufs) > 0 {
		c := copy(p[n:], q.bufs[0][q.off:])
		n += c
		q.off += c

		if q.off == len(q.bufs[0]) {
			q.bufs[0] = nil
			q.bufs = q.bufs[1:]
			q.off = 0
			completed++
		}
	}

	if n < len(p) {
		clear(p[n:])

		if !q.closed {
			q.underruns++
		}
	}

	done := q.done
	closed := q.closed
	q.mu.Unlock()

	if closed {
		return len(p)
	}

	for i := 0; i < completed; i++ {
		done(nil)
	}

	return len(p)
}

// Underruns returns how many reads found the queue empty.
func (q *pullQueue) Underruns() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.underruns
}

// close drops queued buffers. Later reads return silence and complete nothing.
func (q *pullQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.bufs = nil
	q.off = 0
}
