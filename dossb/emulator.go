package dossb

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/pcmout"
	"github.com/gen2brain/pcmout/internal/wavsink"
)

// Model describes an emulated card.
type Model struct {
	Name          string
	Description   string
	Caps          Caps
	MaxRateMono   uint32
	MaxRateStereo uint32
}

var models = map[string]Model{
	"sb": {
		Name:        "sb",
		Description: "Sound Blaster 2.0",
		MaxRateMono: 22050,
	},
	"sbpro": {
		Name:          "sbpro",
		Description:   "Sound Blaster Pro",
		Caps:          CapsStereo,
		MaxRateMono:   44100,
		MaxRateStereo: 22050,
	},
	"sb16": {
		Name:          "sb16",
		Description:   "Sound Blaster 16",
		Caps:          Caps16Bit | CapsStereo,
		MaxRateMono:   44100,
		MaxRateStereo: 44100,
	},
}

// DefaultModel is emulated when the device names no model.
const DefaultModel = "sb16"

// EmulatorBufferSize is the size of the emulated DMA buffer.
const EmulatorBufferSize = 16 << 10

// Models returns the cards the emulator can model, sorted by name.
func Models() []Model {
	list := make([]Model, 0, len(models))
	for _, m := range models {
		list = append(list, m)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	return list
}

// Emulator is a Card that plays its DMA buffer in software. A DMA goroutine
// advances the play position at the programmed rate and hands the bytes it
// passes to a WAV file, or drops them when no file is configured.
type Emulator struct {
	model  Model
	path   string
	logger *log.Logger
	tick   time.Duration

	mu      sync.Mutex
	buf     []byte
	pos     int
	output  bool
	running bool
	closed  bool
	frame   int
	played  int64 // bytes since StartDMA
	sink    *wavsink.Writer
	stop    chan struct{}
	wg      sync.WaitGroup
}

// OpenEmulator opens an emulated card. The device string is "model[:path.wav]";
// an empty model selects DefaultModel.
func OpenEmulator(device string, logger *log.Logger) (*Emulator, error) {
	name, path, _ := strings.Cut(device, ":")
	if name == "" {
		name = DefaultModel
	}

	model, ok := models[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: no Sound Blaster model %q", pcmout.ErrDeviceUnavailable, name)
	}

	if logger == nil {
		logger = pcmout.Discard
	}

	return &Emulator{
		model:  model,
		path:   path,
		logger: logger,
		tick:   5 * time.Millisecond,
		buf:    make([]byte, EmulatorBufferSize),
	}, nil
}

// Model returns the emulated card model.
func (e *Emulator) Model() Model {
	return e.model
}

func (e *Emulator) Caps() Caps {
	return e.model.Caps
}

func (e *Emulator) MaxRate(stereo bool) uint32 {
	if stereo {
		return e.model.MaxRateStereo
	}

	return e.model.MaxRateMono
}

func (e *Emulator) SetOutput(enable bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.output = enable
}

func (e *Emulator) StartDMA(rate uint32, bits16, stereo bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return pcmout.ErrClosed
	}

	if e.running {
		return errors.New("DMA is already running")
	}

	if bits16 && !e.model.Caps.Has(Caps16Bit) || stereo && !e.model.Caps.Has(CapsStereo) {
		return fmt.Errorf("%s does not support this mode", e.model.Description)
	}

	if rate == 0 || rate > e.MaxRate(stereo) {
		return fmt.Errorf("%s cannot play %dHz", e.model.Description, rate)
	}

	mode := pcmout.ModeU8Mono
	switch {
	case bits16 && stereo:
		mode = pcmout.ModeS16Stereo
	case bits16:
		return errors.New("16-bit mono is not supported")
	case stereo:
		mode = pcmout.ModeU8Stereo
	}

	if e.path != "" {
		sink, err := wavsink.Create(e.path, rate, mode)
		if err != nil {
			return err
		}

		e.sink = sink
	}

	e.pos = 0
	e.played = 0
	e.frame = mode.FrameSize()
	e.running = true
	e.stop = make(chan struct{})

	e.wg.Add(1)
	go e.run(e.stop, rate, time.Now())

	return nil
}

// run is the DMA controller.
func (e *Emulator) run(stop <-chan struct{}, rate uint32, start time.Time) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			frames := int64(now.Sub(start)) * int64(rate) / int64(time.Second)
			e.advance(frames)
		}
	}
}

// advance plays up to the given number of frames since StartDMA.
func (e *Emulator) advance(frames int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := frames*int64(e.frame) - e.played
	if n <= 0 {
		return
	}

	e.played += n

	// A stalled controller does not replay the buffer more than once.
	if n > int64(len(e.buf)) {
		skip := n - int64(len(e.buf))
		e.pos = int((int64(e.pos) + skip) % int64(len(e.buf)))
		n = int64(len(e.buf))
	}

	for n > 0 {
		c := min(int(n), len(e.buf)-e.pos)

		if e.output && e.sink != nil {
			if _, err := e.sink.Write(e.buf[e.pos : e.pos+c]); err != nil {
				e.logger.Printf("dossb: %v, recording stopped", err)
				_ = e.sink.Close()
				e.sink = nil
			}
		}

		e.pos = (e.pos + c) % len(e.buf)
		n -= int64(c)
	}
}

func (e *Emulator) StopDMA() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()

		return
	}

	e.running = false
	close(e.stop)
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *Emulator) BufferSize() int {
	return EmulatorBufferSize
}

func (e *Emulator) WriteAt(p []byte, off int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, pcmout.ErrClosed
	}

	if off < 0 || off+int64(len(p)) > int64(len(e.buf)) {
		return 0, fmt.Errorf("write of %d bytes at %d is outside the DMA buffer", len(p), off)
	}

	return copy(e.buf[off:], p), nil
}

func (e *Emulator) Fill(b byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.buf {
		e.buf[i] = b
	}
}

func (e *Emulator) Position() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.pos
}

// Played returns the number of bytes the DMA controller has played since StartDMA.
func (e *Emulator) Played() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.played
}

// Close stops DMA and finalizes the WAV file. Calling it again is a no-op.
func (e *Emulator) Close() error {
	e.StopDMA()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true

	if e.sink != nil {
		err := e.sink.Close()
		e.sink = nil

		return err
	}

	return nil
}

var _ Card = (*Emulator)(nil)
