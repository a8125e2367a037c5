//go:build linux && (amd64 || arm64)

package sndrv

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// PCM represents an open ALSA playback device handle.
type PCM struct {
	file        *os.File
	path        string
	subdevice   uint32
	format      PcmFormat
	channels    uint32
	rate        uint32
	periodSize  uint32 // In frames
	periodCount uint32
	bufferSize  uint32 // In frames
	boundary    SndPcmUframesT
	syncPointer sndPcmSyncPtr
}

// OpenPlayback opens a playback PCM by name.
// The name is "hw:C,D", or "" and "default" for the first card with a playback device.
func OpenPlayback(name string) (*PCM, error) {
	var cards []SoundCard
	if name == "" || name == "default" {
		var err error
		if cards, err = EnumerateCards(); err != nil {
			return nil, err
		}
	}

	card, device, err := ResolveName(name, cards)
	if err != nil {
		return nil, err
	}

	return Open(card, device)
}

// Open opens the playback PCM /dev/snd/pcmC<card>D<device>p in non-blocking mode.
// WriteFrames never sleeps in the kernel; Wait blocks for a bounded time instead.
func Open(card, device uint) (*PCM, error) {
	path := fmt.Sprintf("/dev/snd/pcmC%dD%dp", card, device)

	file, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCM device %s: %w", path, err)
	}

	var info sndPcmInfo
	if err := ioctl(file.Fd(), SNDRV_PCM_IOCTL_INFO, uintptr(unsafe.Pointer(&info))); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("ioctl INFO failed: %w", err)
	}

	return &PCM{
		file:      file,
		path:      path,
		subdevice: info.Subdevice,
	}, nil
}

// Configure negotiates the hardware parameters, then installs software parameters
// that start the stream on an explicit Start or once the whole buffer is filled,
// and stop it when the buffer runs empty.
func (p *PCM) Configure(req HwRequest) error {
	if !p.IsReady() {
		return fmt.Errorf("PCM handle is not valid")
	}

	hw, err := negotiate(refineKernel(p.file.Fd()), req)
	if err != nil {
		return err
	}

	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_HW_PARAMS, uintptr(unsafe.Pointer(hw))); err != nil {
		return fmt.Errorf("ioctl HW_PARAMS failed: %w", err)
	}

	p.format = req.Format
	p.channels = paramGetInt(hw, SNDRV_PCM_HW_PARAM_CHANNELS)
	p.rate = paramGetInt(hw, SNDRV_PCM_HW_PARAM_RATE)
	p.periodSize = paramGetInt(hw, SNDRV_PCM_HW_PARAM_PERIOD_SIZE)
	p.periodCount = paramGetInt(hw, SNDRV_PCM_HW_PARAM_PERIODS)
	p.bufferSize = paramGetInt(hw, SNDRV_PCM_HW_PARAM_BUFFER_SIZE)

	if p.channels == 0 || p.rate == 0 || p.periodSize == 0 || p.bufferSize == 0 {
		return fmt.Errorf("driver finalized invalid PCM configuration (Channels=%d, Rate=%d, PeriodSize=%d, BufferSize=%d)",
			p.channels, p.rate, p.periodSize, p.bufferSize)
	}

	sw := &sndPcmSwParams{}
	sw.TstampMode = 1 // SNDRV_PCM_TSTAMP_ENABLE
	sw.PeriodStep = 1
	sw.AvailMin = SndPcmUframesT(p.periodSize)
	sw.XferAlign = 1
	// The kernel starts the stream by itself only when the buffer is full.
	sw.StartThreshold = SndPcmUframesT(p.bufferSize)
	sw.StopThreshold = SndPcmUframesT(p.bufferSize)

	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_SW_PARAMS, uintptr(unsafe.Pointer(sw))); err != nil {
		return fmt.Errorf("ioctl SW_PARAMS failed: %w", err)
	}

	p.boundary = sw.Boundary

	return nil
}

// IsReady checks if the PCM handle is valid.
func (p *PCM) IsReady() bool {
	return p != nil && p.file != nil
}

// Close closes the PCM device handle. Calling it on a closed handle is a no-op.
func (p *PCM) Close() error {
	if !p.IsReady() {
		return nil
	}

	err := p.file.Close()
	p.file = nil
	p.bufferSize = 0

	return err
}

// Path returns the device node the PCM was opened from.
func (p *PCM) Path() string {
	return p.path
}

// Subdevice returns the subdevice number of the PCM stream.
func (p *PCM) Subdevice() uint32 {
	return p.subdevice
}

// Channels returns the number of channels for the PCM stream.
func (p *PCM) Channels() uint32 {
	return p.channels
}

// Rate returns the negotiated sample rate in Hz.
func (p *PCM) Rate() uint32 {
	return p.rate
}

// BufferSize returns the PCM's total buffer size in frames.
func (p *PCM) BufferSize() uint32 {
	return p.bufferSize
}

// PeriodSize returns the number of frames per period.
func (p *PCM) PeriodSize() uint32 {
	return p.periodSize
}

// PeriodCount returns the number of periods in the buffer.
func (p *PCM) PeriodCount() uint32 {
	return p.periodCount
}

// FrameSize returns the size of a single frame in bytes.
func (p *PCM) FrameSize() uint32 {
	return p.channels * (FormatBits(p.format) / 8)
}

// FormatBits returns the sample width of a format in bits.
func FormatBits(f PcmFormat) uint32 {
	switch f {
	case SNDRV_PCM_FORMAT_S8, SNDRV_PCM_FORMAT_U8:
		return 8
	case SNDRV_PCM_FORMAT_S16_LE, SNDRV_PCM_FORMAT_S16_BE:
		return 16
	default:
		return 0
	}
}

// WriteFrames hands interleaved frames to the device with a single WRITEI call
// and returns the number of frames the kernel accepted.
// A full buffer returns 0 frames and no error; use Wait before retrying.
// An underrun is reported as an error for which InXrun is true.
func (p *PCM) WriteFrames(data []byte) (int, error) {
	if !p.IsReady() {
		return 0, fmt.Errorf("PCM handle is not valid")
	}

	frameSize := p.FrameSize()
	if frameSize == 0 {
		return 0, fmt.Errorf("PCM is not configured")
	}

	frames := uint32(len(data)) / frameSize
	if frames == 0 {
		return 0, nil
	}

	defer runtime.KeepAlive(data)

	xfer := sndXferi{
		Buf:    uintptr(unsafe.Pointer(&data[0])),
		Frames: SndPcmUframesT(frames),
	}

	err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_WRITEI_FRAMES, uintptr(unsafe.Pointer(&xfer)))

	written := 0
	if xfer.Result > 0 {
		written = xfer.Result
	}

	if errors.Is(err, syscall.EAGAIN) {
		return written, nil
	}

	if err != nil {
		return written, fmt.Errorf("ioctl WRITEI_FRAMES failed: %w", err)
	}

	return written, nil
}

// Wait waits until the device has room for more frames or the timeout expires.
// It returns true if the device is ready, false on timeout.
// An underrun or suspend is reported as an error for which InXrun is true.
func (p *PCM) Wait(timeout time.Duration) (bool, error) {
	if !p.IsReady() {
		return false, fmt.Errorf("PCM handle is not valid")
	}

	pfd := []unix.PollFd{
		{
			Fd:     int32(p.file.Fd()),
			Events: unix.POLLOUT | unix.POLLERR | unix.POLLNVAL,
		},
	}

	timeoutMs := max(int(timeout/time.Millisecond), 1)

	var (
		n   int
		err error
	)

	for {
		n, err = unix.Poll(pfd, timeoutMs)
		if !errors.Is(err, syscall.EINTR) {
			break
		}
	}

	if err != nil {
		return false, fmt.Errorf("poll failed: %w", err)
	}

	if n == 0 {
		return false, nil
	}

	if pfd[0].Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
		switch p.State() {
		case SNDRV_PCM_STATE_XRUN:
			return false, fmt.Errorf("stream xrun: %w", syscall.EPIPE)
		case SNDRV_PCM_STATE_SUSPENDED:
			return false, fmt.Errorf("stream suspended: %w", syscall.ESTRPIPE)
		case SNDRV_PCM_STATE_DISCONNECTED:
			return false, fmt.Errorf("device disconnected: %w", syscall.ENODEV)
		default:
			return false, fmt.Errorf("poll error, revents=%#x", pfd[0].Revents)
		}
	}

	return pfd[0].Revents&unix.POLLOUT != 0, nil
}

// InXrun reports whether err means the stream ran out of data or was suspended
// and needs Prepare before it accepts more frames.
func InXrun(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ESTRPIPE)
}

// Prepare readies the PCM device for I/O operations.
// This is what recovers the stream after an underrun.
func (p *PCM) Prepare() error {
	if !p.IsReady() {
		return fmt.Errorf("PCM handle is not valid")
	}

	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_PREPARE, 0); err != nil {
		return fmt.Errorf("ioctl PREPARE failed: %w", err)
	}

	return nil
}

// Start explicitly starts the PCM stream. A running stream is left alone.
func (p *PCM) Start() error {
	if !p.IsReady() {
		return fmt.Errorf("PCM handle is not valid")
	}

	switch p.State() {
	case SNDRV_PCM_STATE_RUNNING:
		return nil
	case SNDRV_PCM_STATE_SETUP:
		if err := p.Prepare(); err != nil {
			return err
		}
	}

	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_START, 0); err != nil {
		return fmt.Errorf("ioctl START failed: %w", err)
	}

	return nil
}

// Drop abruptly stops the PCM stream, dropping any pending frames.
func (p *PCM) Drop() error {
	if !p.IsReady() {
		return fmt.Errorf("PCM handle is not valid")
	}

	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_DROP, 0); err != nil {
		return fmt.Errorf("ioctl DROP failed: %w", err)
	}

	return nil
}

// Drain lets the pending frames play out. The handle is non-blocking, so the call
// returns at once and the stream stays in the DRAINING state until it is empty.
func (p *PCM) Drain() error {
	if !p.IsReady() {
		return fmt.Errorf("PCM handle is not valid")
	}

	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_DRAIN, 0); err != nil && !errors.Is(err, syscall.EAGAIN) {
		return fmt.Errorf("ioctl DRAIN failed: %w", err)
	}

	return nil
}

// State returns the current state of the stream as reported by the kernel.
// A handle that cannot be queried is reported as disconnected.
func (p *PCM) State() PcmState {
	if !p.IsReady() {
		return SNDRV_PCM_STATE_DISCONNECTED
	}

	p.syncPointer.Flags = SNDRV_PCM_SYNC_PTR_HWSYNC | SNDRV_PCM_SYNC_PTR_APPL | SNDRV_PCM_SYNC_PTR_AVAIL_MIN
	if err := ioctl(p.file.Fd(), SNDRV_PCM_IOCTL_SYNC_PTR, uintptr(unsafe.Pointer(&p.syncPointer))); err != nil {
		return SNDRV_PCM_STATE_DISCONNECTED
	}

	return PcmState(p.syncPointer.S.State)
}
