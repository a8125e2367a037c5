// Package alsa is the pcmout driver for the Linux ALSA kernel PCM interface.
//
// It talks to /dev/snd directly and needs no C library, so only hardware
// devices ("default", "hw:C,D") can be opened.
package alsa

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gen2brain/pcmout"
	"github.com/gen2brain/pcmout/internal/sndrv"
)

// DriverName is the name the driver registers under.
const DriverName = "alsa"

// Buffer and period times requested from the device, in microseconds.
const (
	BufferTime = 500000
	PeriodTime = 50000
)

// DefaultDevice is opened when the config names no device.
const DefaultDevice = "default"

func init() {
	pcmout.Register(pcmout.Driver{
		Name:        DriverName,
		Description: "Advanced Linux Sound Architecture (ALSA) output",
		Open: func(cfg pcmout.Config) (pcmout.Stream, error) {
			s, err := Open(cfg)
			if err != nil {
				return nil, err
			}

			return s, nil
		},
	})
}

// Card is a sound card found under /proc/asound.
type Card = sndrv.SoundCard

// Cards lists the sound cards of the system and their PCM devices.
func Cards() ([]Card, error) {
	return sndrv.EnumerateCards()
}

// pcmDevice is the configured playback device a Stream writes to.
type pcmDevice interface {
	// WriteFrames submits whole S16 stereo frames and returns how many were accepted.
	WriteFrames(data []byte) (int, error)
	// Wait blocks until the device has room or the timeout expires.
	Wait(timeout time.Duration) (bool, error)
	// Xrun reports whether a write error means the device ran dry.
	Xrun(err error) bool
	Prepare() error
	Start() error
	Drop() error
	Close() error
	Rate() uint32
	BufferSize() uint32
	PeriodSize() uint32
}

type opener func(name string, rate uint32) (pcmDevice, error)

// Stream is an open ALSA playback stream.
type Stream struct {
	mu        sync.Mutex
	dev       pcmDevice
	name      string
	logger    *log.Logger
	timeout   time.Duration
	poll      time.Duration
	started   bool
	closed    bool
	underruns int
	err       error
}

// Open opens and configures an ALSA playback device for S16 stereo output.
func Open(cfg pcmout.Config) (*Stream, error) {
	return open(cfg, openDevice)
}

func open(cfg pcmout.Config, openDev opener) (*Stream, error) {
	cfg = cfg.WithDefaults()

	name := cfg.Device
	if name == "" {
		name = DefaultDevice
	}

	dev, err := openDev(name, cfg.Rate)
	if err != nil {
		return nil, err
	}

	cfg.Logger.Printf("alsa: %s opened at %dHz, buffer %d frames, period %d frames",
		name, dev.Rate(), dev.BufferSize(), dev.PeriodSize())

	return &Stream{
		dev:     dev,
		name:    name,
		logger:  cfg.Logger,
		timeout: cfg.WriteTimeout,
		poll:    cfg.PollInterval,
	}, nil
}

// Write submits data to the device, recovering from underruns on the way.
// The device is started explicitly after the first frames are queued.
// While the device buffer is full Write polls it, so ctx and the write timeout
// are honoured at every poll interval.
func (s *Stream) Write(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return pcmout.ErrClosed
	}

	if s.err != nil {
		return s.err
	}

	if len(data)%pcmout.FrameSize != 0 {
		return fmt.Errorf("%w: %d bytes is not a multiple of %d", pcmout.ErrShortFrame, len(data), pcmout.FrameSize)
	}

	lastProgress := time.Now()
	for len(data) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := s.dev.WriteFrames(data)
		if n > 0 {
			data = data[n*pcmout.FrameSize:]
			lastProgress = time.Now()

			if !s.started {
				if err := s.dev.Start(); err != nil {
					s.logger.Printf("alsa: start failed: %v", err)
				}

				s.started = true
			}
		}

		if err == nil && n == 0 {
			// The buffer is full.
			_, err = s.dev.Wait(s.poll)
		}

		if err != nil {
			if err := s.recoverXrun(ctx, err); err != nil {
				return err
			}
		}

		if len(data) > 0 && time.Since(lastProgress) > s.timeout {
			return fmt.Errorf("%w: %s accepted nothing for %s", pcmout.ErrDeviceTimeout, s.name, s.timeout)
		}
	}

	return nil
}

// recoverXrun prepares the device again after an underrun.
// Any other error poisons the stream.
func (s *Stream) recoverXrun(ctx context.Context, err error) error {
	if !s.dev.Xrun(err) {
		s.err = fmt.Errorf("%w: %w", pcmout.ErrWrite, err)

		return s.err
	}

	s.underruns++
	s.started = false
	s.logger.Printf("alsa: underrun on %s, preparing the stream again", s.name)

	if err := s.dev.Prepare(); err != nil {
		s.logger.Printf("alsa: prepare failed: %v", err)

		return s.sleep(ctx)
	}

	return nil
}

// sleep waits one poll interval or until ctx is done.
func (s *Stream) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.poll):
		return nil
	}
}

// Pause is a no-op, ALSA output stops by itself when the caller stops writing.
func (s *Stream) Pause() error {
	return nil
}

// Resume is a no-op.
func (s *Stream) Resume() error {
	return nil
}

// Close drops pending frames and releases the device. Calling it again is a no-op.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.logger.Printf("alsa: shutting down sound output")

	if err := s.dev.Drop(); err != nil {
		s.logger.Printf("alsa: drop failed: %v", err)
	}

	return s.dev.Close()
}

// Rate returns the sample rate the device accepted.
func (s *Stream) Rate() uint32 {
	return s.dev.Rate()
}

// Underruns returns how many times the device ran dry and was prepared again.
func (s *Stream) Underruns() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.underruns
}

// BufferSize returns the device buffer size in frames.
func (s *Stream) BufferSize() uint32 {
	return s.dev.BufferSize()
}

// PeriodSize returns the device period size in frames.
func (s *Stream) PeriodSize() uint32 {
	return s.dev.PeriodSize()
}
