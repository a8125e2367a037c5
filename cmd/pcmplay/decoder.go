package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gopxl/beep"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// Source is a decoded audio file that streams stereo samples in [-1, 1].
type Source interface {
	beep.Streamer
	// SampleRate returns the sample rate of the file.
	SampleRate() beep.SampleRate
	// NumChans returns the number of channels in the file.
	NumChans() int
	// Duration returns the total duration of the file, or 0 if unknown.
	Duration() time.Duration
}

// openSource picks a decoder by file extension.
func openSource(path string) (Source, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	var src Source
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		src, err = newWavSource(f)
	case ".mp3":
		src, err = newMp3Source(f)
	case ".ogg", ".oga":
		src, err = newOggSource(f)
	default:
		err = fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}

	if err != nil {
		_ = f.Close()

		return nil, nil, err
	}

	return src, f, nil
}

// wavSource wraps the go-audio WAV decoder.
type wavSource struct {
	decoder *wav.Decoder
	buf     *audio.IntBuffer
	scale   float64
	err     error
}

func newWavSource(r io.ReadSeeker) (Source, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	if decoder.WavAudioFormat != 1 {
		return nil, fmt.Errorf("WAV audio format %d is not integer PCM", decoder.WavAudioFormat)
	}

	if decoder.NumChans < 1 || decoder.NumChans > 2 {
		return nil, fmt.Errorf("%d channels are not supported", decoder.NumChans)
	}

	return &wavSource{
		decoder: decoder,
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: int(decoder.NumChans),
				SampleRate:  int(decoder.SampleRate),
			},
		},
		scale: float64(int(1) << (decoder.BitDepth - 1)),
	}, nil
}

func (w *wavSource) Stream(samples [][2]float64) (int, bool) {
	chans := int(w.decoder.NumChans)
	if cap(w.buf.Data) < len(samples)*chans {
		w.buf.Data = make([]int, len(samples)*chans)
	}

	w.buf.Data = w.buf.Data[:len(samples)*chans]

	n, err := w.decoder.PCMBuffer(w.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		w.err = err

		return 0, false
	}

	frames := n / chans
	for i := 0; i < frames; i++ {
		l := float64(w.buf.Data[i*chans])
		r := l
		if chans == 2 {
			r = float64(w.buf.Data[i*chans+1])
		}

		// 8-bit WAV data is unsigned.
		if w.decoder.BitDepth == 8 {
			l, r = l-128, r-128
		}

		samples[i][0], samples[i][1] = l/w.scale, r/w.scale
	}

	return frames, frames > 0
}

func (w *wavSource) Err() error                  { return w.err }
func (w *wavSource) SampleRate() beep.SampleRate { return beep.SampleRate(w.decoder.SampleRate) }
func (w *wavSource) NumChans() int               { return int(w.decoder.NumChans) }

func (w *wavSource) Duration() time.Duration {
	d, err := w.decoder.Duration()
	if err != nil {
		return 0
	}

	return d
}

// mp3Source wraps the go-mp3 decoder, which always produces 16-bit little-endian stereo.
type mp3Source struct {
	decoder *mp3.Decoder
	buf     []byte
	err     error
}

func newMp3Source(r io.Reader) (Source, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	return &mp3Source{decoder: decoder}, nil
}

func (m *mp3Source) Stream(samples [][2]float64) (int, bool) {
	if cap(m.buf) < len(samples)*4 {
		m.buf = make([]byte, len(samples)*4)
	}

	buf := m.buf[:len(samples)*4]

	n, err := io.ReadFull(m.decoder, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		m.err = err

		return 0, false
	}

	frames := n / 4
	for i := 0; i < frames; i++ {
		samples[i][0] = float64(int16(binary.LittleEndian.Uint16(buf[i*4:]))) / 32768
		samples[i][1] = float64(int16(binary.LittleEndian.Uint16(buf[i*4+2:]))) / 32768
	}

	return frames, frames > 0
}

func (m *mp3Source) Err() error                  { return m.err }
func (m *mp3Source) SampleRate() beep.SampleRate { return beep.SampleRate(m.decoder.SampleRate()) }
func (m *mp3Source) NumChans() int               { return 2 }

func (m *mp3Source) Duration() time.Duration {
	frames := m.decoder.Length() / 4

	return time.Duration(frames) * time.Second / time.Duration(m.decoder.SampleRate())
}

// oggSource wraps the Ogg Vorbis decoder, which produces interleaved float32 samples.
type oggSource struct {
	reader *oggvorbis.Reader
	buf    []float32
	err    error
}

func newOggSource(r io.Reader) (Source, error) {
	reader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, err
	}

	if reader.Channels() < 1 || reader.Channels() > 2 {
		return nil, fmt.Errorf("%d channels are not supported", reader.Channels())
	}

	return &oggSource{reader: reader}, nil
}

func (o *oggSource) Stream(samples [][2]float64) (int, bool) {
	chans := o.reader.Channels()
	if cap(o.buf) < len(samples)*chans {
		o.buf = make([]float32, len(samples)*chans)
	}

	buf := o.buf[:len(samples)*chans]

	// Read returns the number of values, not frames.
	n, err := o.reader.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		o.err = err

		return 0, false
	}

	frames := n / chans
	for i := 0; i < frames; i++ {
		l := float64(buf[i*chans])
		r := l
		if chans == 2 {
			r = float64(buf[i*chans+1])
		}

		samples[i][0], samples[i][1] = l, r
	}

	return frames, frames > 0
}

func (o *oggSource) Err() error                  { return o.err }
func (o *oggSource) SampleRate() beep.SampleRate { return beep.SampleRate(o.reader.SampleRate()) }
func (o *oggSource) NumChans() int               { return o.reader.Channels() }

func (o *oggSource) Duration() time.Duration {
	length := o.reader.Length()
	if length <= 0 {
		return 0
	}

	return time.Duration(length) * time.Second / time.Duration(o.reader.SampleRate())
}
