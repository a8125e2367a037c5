// Package dart is the pcmout driver for multi-buffer mixer services.
//
// The driver rotates a pool of four fixed-size slots through a Mixer: the
// caller fills the current slot, full slots are handed to the mixer, and the
// mixer reports each slot back from its own goroutine once it has been played.
// Mixers for PulseAudio, oto (with the oto build tag) and PortAudio (with the
// portaudio build tag) are included; the device name of the config selects one.
// The PulseAudio mixer is pure Go, the others need cgo on Linux.
package dart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/bits"
	"sync"
	"time"

	"github.com/gen2brain/pcmout"
)

// DriverName is the name the driver registers under.
const DriverName = "dart"

// SlotCount is the number of buffers rotated through the mixer.
const SlotCount = 4

const (
	minSlotSize = 1 << 11
	maxSlotSize = 1 << 16
)

func init() {
	pcmout.Register(pcmout.Driver{
		Name:        DriverName,
		Description: "Multi-buffer mixer service output (oto, PulseAudio, PortAudio)",
		Open: func(cfg pcmout.Config) (pcmout.Stream, error) {
			s, err := Open(cfg)
			if err != nil {
				return nil, err
			}

			return s, nil
		},
	})
}

// SlotSize returns the slot size in bytes for a sample rate: a quarter second of
// S16 stereo, rounded down to a power of two and kept within 2 KiB..64 KiB.
func SlotSize(rate uint32) int {
	size := int(rate>>2) * pcmout.FrameSize
	if size < minSlotSize {
		return minSlotSize
	}

	size = 1 << (bits.Len(uint(size)) - 1)

	return min(size, maxSlotSize)
}

// Stream is an open mixer stream.
type Stream struct {
	writeMu  sync.Mutex
	mixer    Mixer
	service  string
	rate     uint32
	slots    [][]byte
	slotSize int
	current  int
	fill     int
	dirty    bool // audio was written since open

	mu        sync.Mutex
	free      int   // slots not owned by the mixer, the current one included
	submitted []int // slots owned by the mixer, oldest first
	status    error

	notify    chan struct{}
	quit      chan struct{}
	closeOnce sync.Once
	closeErr  error

	logger  *log.Logger
	timeout time.Duration
	poll    time.Duration
}

// Open sets up the mixer service named by cfg.Device and primes it with two silent slots.
func Open(cfg pcmout.Config) (*Stream, error) {
	cfg = cfg.WithDefaults()

	name := cfg.Device
	if name == "" {
		name = DefaultService()
	}

	newMixer, ok := lookupService(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown mixer service %q", pcmout.ErrDeviceUnavailable, name)
	}

	return open(cfg, name, newMixer())
}

func open(cfg pcmout.Config, name string, mixer Mixer) (*Stream, error) {
	s := &Stream{
		mixer:   mixer,
		service: name,
		free:    SlotCount,
		notify:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
		logger:  cfg.Logger,
		timeout: cfg.WriteTimeout,
		poll:    cfg.PollInterval,
	}

	s.slotSize = SlotSize(cfg.Rate)

	rate, err := mixer.Setup(Format{
		Rate:       cfg.Rate,
		Channels:   pcmout.Channels,
		Bits:       pcmout.BytesPerSample * 8,
		BufferSize: s.slotSize,
	}, s.completed)
	if err != nil {
		_ = mixer.Close()

		if errors.Is(err, pcmout.ErrDeviceUnavailable) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %s: %w", pcmout.ErrDeviceConfig, name, err)
	}

	s.rate = rate
	s.slots = make([][]byte, SlotCount)
	for i := range s.slots {
		s.slots[i] = make([]byte, s.slotSize)
	}

	// Two silent slots get playback going before the first Write.
	for i := 0; i < 2; i++ {
		if err := s.submit(i, s.slotSize); err != nil {
			_ = mixer.Close()
			s.slots = nil

			return nil, fmt.Errorf("%w: %s: priming failed: %w", pcmout.ErrDeviceConfig, name, err)
		}
	}

	s.current = 2

	s.logger.Printf("dart: %s opened at %dHz, %d slots of %d bytes", name, rate, SlotCount, s.slotSize)

	return s, nil
}

// submit hands the first n bytes of slot i to the mixer.
func (s *Stream) submit(i, n int) error {
	s.mu.Lock()
	s.free--
	s.submitted = append(s.submitted, i)
	s.mu.Unlock()

	if err := s.mixer.Submit(s.slots[i][:n]); err != nil {
		s.mu.Lock()
		s.free++
		s.submitted = s.submitted[:len(s.submitted)-1]
		s.mu.Unlock()

		return err
	}

	return nil
}

// completed is the mixer's done callback. It runs on the mixer's goroutine.
func (s *Stream) completed(err error) {
	s.mu.Lock()
	if len(s.submitted) > 0 {
		s.submitted = s.submitted[1:]
		s.free++
	}

	if err != nil && !errors.Is(err, ErrUnderrun) && s.status == nil {
		s.status = err
	}
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// counts returns the free and submitted slot counts.
func (s *Stream) counts() (free, submitted int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.free, len(s.submitted)
}

// waitFor blocks until ready reports true for the free and submitted slot counts.
// A closed quit channel ends the wait with ErrClosed; nil never does.
func (s *Stream) waitFor(ctx context.Context, quit <-chan struct{}, ready func(free, submitted int) bool) error {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	deadline := time.Now().Add(s.timeout)
	for {
		s.mu.Lock()
		free, submitted, status := s.free, len(s.submitted), s.status
		s.mu.Unlock()

		if status != nil {
			return fmt.Errorf("%w: %s: %w", pcmout.ErrWrite, s.service, status)
		}

		if ready(free, submitted) {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s returned no buffer for %s", pcmout.ErrDeviceTimeout, s.service, s.timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-quit:
			return pcmout.ErrClosed
		case <-s.notify:
		case <-ticker.C:
		}
	}
}

// hasSpare reports whether a slot other than the current one is free.
func hasSpare(free, _ int) bool {
	return free >= 2
}

// drain submits the partly filled current slot and waits until the mixer has
// played every slot.
func (s *Stream) drain() error {
	if !s.dirty {
		return nil
	}

	if s.fill > 0 {
		if err := s.submit(s.current, s.fill); err != nil {
			return fmt.Errorf("%w: %s: %w", pcmout.ErrWrite, s.service, err)
		}

		s.fill = 0
	}

	return s.waitFor(context.Background(), nil, func(_, submitted int) bool {
		return submitted == 0
	})
}

// Write copies data into the current slot, handing full slots to the mixer as more room is needed.
func (s *Stream) Write(ctx context.Context, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.quit:
		return pcmout.ErrClosed
	default:
	}

	s.mu.Lock()
	status := s.status
	s.mu.Unlock()

	if status != nil {
		return fmt.Errorf("%w: %s: %w", pcmout.ErrWrite, s.service, status)
	}

	for len(data) > 0 {
		if s.fill == s.slotSize {
			if err := s.waitFor(ctx, s.quit, hasSpare); err != nil {
				return err
			}

			if err := s.submit(s.current, s.slotSize); err != nil {
				return fmt.Errorf("%w: %s: %w", pcmout.ErrWrite, s.service, err)
			}

			s.current = (s.current + 1) % SlotCount
			s.fill = 0
		}

		n := copy(s.slots[s.current][s.fill:], data)
		s.fill += n
		s.dirty = true
		data = data[n:]
	}

	return nil
}

// Pause is a no-op.
func (s *Stream) Pause() error {
	return nil
}

// Resume is a no-op.
func (s *Stream) Resume() error {
	return nil
}

// Close plays out the written audio, waiting at most the write timeout, then
// stops the mixer and releases the slots. A Write blocked in another goroutine
// returns ErrClosed. Calling Close again is a no-op.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)

		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		s.logger.Printf("dart: shutting down sound output")

		if err := s.drain(); err != nil {
			s.logger.Printf("dart: %v, dropping queued audio", err)
		}

		s.closeErr = s.mixer.Close()
		s.slots = nil
	})

	return s.closeErr
}

// Rate returns the sample rate the mixer accepted.
func (s *Stream) Rate() uint32 {
	return s.rate
}

// SlotSize returns the size of one slot in bytes.
func (s *Stream) SlotSize() int {
	return s.slotSize
}
