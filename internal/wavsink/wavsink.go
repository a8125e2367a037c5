// Package wavsink writes raw device-format samples to a RIFF/WAVE file.
package wavsink

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/gen2brain/pcmout"
)

// Writer encodes samples in one of the pcmout sample modes.
type Writer struct {
	file    *os.File
	encoder *wav.Encoder
	mode    pcmout.SampleMode
	buf     *audio.IntBuffer
	frames  int
}

// Create creates or truncates the file at path and writes a WAVE header for the mode.
func Create(path string, rate uint32, mode pcmout.SampleMode) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}

	bitDepth, channels := 16, pcmout.Channels
	switch mode {
	case pcmout.ModeU8Stereo:
		bitDepth = 8
	case pcmout.ModeU8Mono:
		bitDepth, channels = 8, 1
	}

	return &Writer{
		file: file,
		encoder: wav.NewEncoder(file,
			int(rate),
			bitDepth,
			channels,
			1, // Audio format 1 is PCM
		),
		mode: mode,
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  int(rate),
			},
			SourceBitDepth: bitDepth,
		},
	}, nil
}

// Write encodes p, which must hold whole frames in the writer's mode.
// 16-bit samples are in host byte order, 8-bit samples are unsigned.
func (w *Writer) Write(p []byte) (int, error) {
	if w.encoder == nil {
		return 0, pcmout.ErrClosed
	}

	frameSize := w.mode.FrameSize()
	if len(p)%frameSize != 0 {
		return 0, fmt.Errorf("%w: %d bytes of %s", pcmout.ErrShortFrame, len(p), w.mode)
	}

	data := w.buf.Data[:0]
	if w.mode == pcmout.ModeS16Stereo {
		for i := 0; i+1 < len(p); i += 2 {
			data = append(data, int(int16(binary.NativeEndian.Uint16(p[i:]))))
		}
	} else {
		for _, b := range p {
			data = append(data, int(b))
		}
	}

	w.buf.Data = data
	if err := w.encoder.Write(w.buf); err != nil {
		return 0, fmt.Errorf("failed to write WAV data: %w", err)
	}

	w.frames += len(p) / frameSize

	return len(p), nil
}

// Frames returns the number of frames written so far.
func (w *Writer) Frames() int {
	return w.frames
}

// Close finalizes the header and closes the file. Calling it again is a no-op.
func (w *Writer) Close() error {
	if w.encoder == nil {
		return nil
	}

	err := w.encoder.Close()
	w.encoder = nil

	if cerr := w.file.Close(); err == nil {
		err = cerr
	}

	return err
}
