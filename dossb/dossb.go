// Package dossb is the pcmout driver for Sound Blaster class cards that play
// from a circular DMA buffer.
//
// The driver never waits for an interrupt: Write keeps copying into the part of
// the buffer the card has already played and sleeps while the card catches up.
// Cards are opened through the Emulator, which plays the buffer in software.
package dossb

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/pcmout"
)

// DriverName is the name the driver registers under.
const DriverName = "dossb"

// MinRate is the lowest rate the driver programs.
const MinRate = 4000

// fillAlign is the granularity of the DMA position the driver fills up to.
const fillAlign = 256

func init() {
	pcmout.Register(pcmout.Driver{
		Name:        DriverName,
		Description: "Sound Blaster DMA output",
		Open: func(cfg pcmout.Config) (pcmout.Stream, error) {
			s, err := Open(cfg)
			if err != nil {
				return nil, err
			}

			return s, nil
		},
	})
}

// Stream is an open DMA stream.
type Stream struct {
	mu      sync.Mutex
	card    Card
	mode    pcmout.SampleMode
	rate    uint32
	size    int
	tail    int  // the byte after the last one filled
	dirty   bool // the buffer holds audio that may not have played yet
	scratch []byte
	closed  atomic.Bool

	logger  *log.Logger
	timeout time.Duration
	poll    time.Duration
}

// Open opens the card named by cfg.Device (see OpenEmulator) and starts playback.
func Open(cfg pcmout.Config) (*Stream, error) {
	cfg = cfg.WithDefaults()

	card, err := OpenEmulator(cfg.Device, cfg.Logger)
	if err != nil {
		cfg.Logger.Printf("dossb: Sound Blaster initialization failed")

		return nil, err
	}

	return open(cfg, card)
}

func open(cfg pcmout.Config, card Card) (*Stream, error) {
	caps := card.Caps()
	stereo := caps.Has(CapsStereo)
	bits16 := caps.Has(Caps16Bit)

	rate := max(cfg.Rate, MinRate)
	rate = min(rate, card.MaxRate(stereo))

	mode := pcmout.ModeU8Mono
	switch {
	case bits16:
		mode = pcmout.ModeS16Stereo
	case stereo:
		mode = pcmout.ModeU8Stereo
	}

	card.SetOutput(true)

	if err := card.StartDMA(rate, bits16, stereo); err != nil {
		card.SetOutput(false)
		_ = card.Close()
		cfg.Logger.Printf("dossb: DMA start failed")

		return nil, fmt.Errorf("%w: DMA start failed: %w", pcmout.ErrDeviceConfig, err)
	}

	cfg.Logger.Printf("dossb: playing %s at %dHz from a %d byte DMA buffer", mode, rate, card.BufferSize())

	return &Stream{
		card:    card,
		mode:    mode,
		rate:    rate,
		size:    card.BufferSize(),
		logger:  cfg.Logger,
		timeout: cfg.WriteTimeout,
		poll:    cfg.PollInterval,
	}, nil
}

// Mode returns the sample layout the card plays.
func (s *Stream) Mode() pcmout.SampleMode {
	return s.mode
}

// fill copies as much of p as fits between the tail and the card position.
func (s *Stream) fill(p []byte) (int, error) {
	pos := s.card.Position() &^ (fillAlign - 1)
	if s.tail == pos {
		return 0, nil
	}

	if pos > s.tail {
		n := min(pos-s.tail, len(p))
		if _, err := s.card.WriteAt(p[:n], int64(s.tail)); err != nil {
			return 0, err
		}

		s.tail += n
		if s.tail >= s.size {
			s.tail = 0
		}

		return n, nil
	}

	// The position has wrapped: fill to the buffer end first.
	n := min(s.size-s.tail, len(p))
	if _, err := s.card.WriteAt(p[:n], int64(s.tail)); err != nil {
		return 0, err
	}

	s.tail += n
	if s.tail >= s.size {
		s.tail = 0
	}

	rest := min(pos, len(p)-n)
	if rest == 0 {
		return n, nil
	}

	if _, err := s.card.WriteAt(p[n:n+rest], 0); err != nil {
		return n, err
	}

	s.tail = rest

	return n + rest, nil
}

// Write converts data to the card format and copies it into the DMA buffer,
// sleeping while the card has no room.
func (s *Stream) Write(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return pcmout.ErrClosed
	}

	if len(data)%pcmout.FrameSize != 0 {
		return fmt.Errorf("%w: %d bytes is not a multiple of %d", pcmout.ErrShortFrame, len(data), pcmout.FrameSize)
	}

	n := pcmout.ConvertedLen(len(data), s.mode)
	if cap(s.scratch) < n {
		s.scratch = make([]byte, n)
	}

	p := s.scratch[:n]
	pcmout.Convert(p, data, s.mode)

	lastProgress := time.Now()
	for len(p) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.closed.Load() {
			return pcmout.ErrClosed
		}

		n, err := s.fill(p)
		if err != nil {
			if s.closed.Load() {
				return pcmout.ErrClosed
			}

			return fmt.Errorf("%w: %w", pcmout.ErrWrite, err)
		}

		if n > 0 {
			p = p[n:]
			s.dirty = true
			lastProgress = time.Now()

			continue
		}

		if time.Since(lastProgress) > s.timeout {
			return fmt.Errorf("%w: DMA position stuck at %d for %s", pcmout.ErrDeviceTimeout, s.card.Position(), s.timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.poll):
		}
	}

	return nil
}

// Pause fills the DMA buffer with silence. The card keeps playing it.
func (s *Stream) Pause() error {
	if s.closed.Load() {
		return pcmout.ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.card.Fill(s.mode.Silence())
	s.dirty = false

	return nil
}

// Resume is a no-op, the next Write refills the buffer.
func (s *Stream) Resume() error {
	return nil
}

// Close waits, at most the write timeout, until the card has played what was
// written, then turns the speaker off, stops DMA and releases the card.
// A Write running in another goroutine returns ErrClosed. Calling Close again is a no-op.
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Printf("dossb: shutting down sound output")

	if s.dirty {
		if err := s.drain(); err != nil {
			s.logger.Printf("dossb: %v, dropping queued audio", err)
		}
	}

	s.card.SetOutput(false)
	s.card.StopDMA()

	return s.card.Close()
}

// drain waits until the card position has moved past the tail.
// Everything from the position up to the tail is still to be played.
func (s *Stream) drain() error {
	last := s.card.Position()
	remaining := (s.tail - last + s.size) % s.size

	lastProgress := time.Now()
	for played := 0; played < remaining; {
		time.Sleep(s.poll)

		pos := s.card.Position()
		if pos != last {
			played += (pos - last + s.size) % s.size
			last = pos
			lastProgress = time.Now()

			continue
		}

		if time.Since(lastProgress) > s.timeout {
			return fmt.Errorf("%w: DMA position stuck at %d for %s", pcmout.ErrDeviceTimeout, pos, s.timeout)
		}
	}

	return nil
}

// Rate returns the programmed sample rate.
func (s *Stream) Rate() uint32 {
	return s.rate
}
