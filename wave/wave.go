// Package wave is the pcmout driver that renders output to a RIFF/WAVE file.
package wave

import (
	"context"
	"fmt"
	"log"

	"github.com/gen2brain/pcmout"
	"github.com/gen2brain/pcmout/internal/wavsink"
)

// DriverName is the name the driver registers under.
const DriverName = "wave"

// DefaultPath is written when the config names no device.
const DefaultPath = "wildmidi.wav"

// Rate limits of the file output.
const (
	MinRate = 4000
	MaxRate = 96000
)

func init() {
	pcmout.Register(pcmout.Driver{
		Name:        DriverName,
		Description: "Output to a RIFF/WAVE file",
		Open: func(cfg pcmout.Config) (pcmout.Stream, error) {
			s, err := Open(cfg)
			if err != nil {
				return nil, err
			}

			return s, nil
		},
	})
}

// Stream writes S16 stereo to a file.
type Stream struct {
	w      *wavsink.Writer
	path   string
	rate   uint32
	logger *log.Logger
	closed bool
}

// Open creates the file named by cfg.Device.
func Open(cfg pcmout.Config) (*Stream, error) {
	cfg = cfg.WithDefaults()

	path := cfg.Device
	if path == "" {
		path = DefaultPath
	}

	rate := min(max(cfg.Rate, MinRate), MaxRate)

	w, err := wavsink.Create(path, rate, pcmout.ModeS16Stereo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pcmout.ErrDeviceUnavailable, err)
	}

	cfg.Logger.Printf("wave: writing %dHz to %s", rate, path)

	return &Stream{w: w, path: path, rate: rate, logger: cfg.Logger}, nil
}

// Write appends data to the file.
func (s *Stream) Write(_ context.Context, data []byte) error {
	if s.closed {
		return pcmout.ErrClosed
	}

	if len(data)%pcmout.FrameSize != 0 {
		return fmt.Errorf("%w: %d bytes is not a multiple of %d", pcmout.ErrShortFrame, len(data), pcmout.FrameSize)
	}

	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("%w: %w", pcmout.ErrWrite, err)
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

// Close finalizes the WAVE header. Calling it again is a no-op.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	s.logger.Printf("wave: %d frames written to %s", s.w.Frames(), s.path)

	return s.w.Close()
}

// Rate returns the rate written to the file header.
func (s *Stream) Rate() uint32 {
	return s.rate
}
