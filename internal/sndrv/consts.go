//go:build linux && (amd64 || arm64)

// Package sndrv talks to ALSA PCM playback devices through the kernel ioctl interface.
// Only direct hardware devices (/dev/snd/pcmC*D*p) are supported, there is no plugin layer.
package sndrv

// PcmFormat defines the sample format for a PCM stream.
// These values correspond to the SNDRV_PCM_FORMAT_* constants in the ALSA kernel headers.
type PcmFormat int32

const (
	SNDRV_PCM_FORMAT_S8     PcmFormat = 0
	SNDRV_PCM_FORMAT_U8     PcmFormat = 1
	SNDRV_PCM_FORMAT_S16_LE PcmFormat = 2
	SNDRV_PCM_FORMAT_S16_BE PcmFormat = 3
)

// PcmState defines the current state of a PCM stream.
// These values correspond to the SNDRV_PCM_STATE_* constants.
type PcmState int32

const (
	SNDRV_PCM_STATE_OPEN         PcmState = 0 // Stream is open.
	SNDRV_PCM_STATE_SETUP        PcmState = 1 // Stream has a setup.
	SNDRV_PCM_STATE_PREPARED     PcmState = 2 // Stream is ready to start.
	SNDRV_PCM_STATE_RUNNING      PcmState = 3 // Stream is running.
	SNDRV_PCM_STATE_XRUN         PcmState = 4 // Stream reached an underrun.
	SNDRV_PCM_STATE_DRAINING     PcmState = 5 // Stream is draining.
	SNDRV_PCM_STATE_PAUSED       PcmState = 6 // Stream is paused.
	SNDRV_PCM_STATE_SUSPENDED    PcmState = 7 // Hardware is suspended.
	SNDRV_PCM_STATE_DISCONNECTED PcmState = 8 // Hardware is disconnected.
)

var pcmStateNames = map[PcmState]string{
	SNDRV_PCM_STATE_OPEN:         "OPEN",
	SNDRV_PCM_STATE_SETUP:        "SETUP",
	SNDRV_PCM_STATE_PREPARED:     "PREPARED",
	SNDRV_PCM_STATE_RUNNING:      "RUNNING",
	SNDRV_PCM_STATE_XRUN:         "XRUN",
	SNDRV_PCM_STATE_DRAINING:     "DRAINING",
	SNDRV_PCM_STATE_PAUSED:       "PAUSED",
	SNDRV_PCM_STATE_SUSPENDED:    "SUSPENDED",
	SNDRV_PCM_STATE_DISCONNECTED: "DISCONNECTED",
}

// String returns the ALSA name of the state.
func (s PcmState) String() string {
	if name, ok := pcmStateNames[s]; ok {
		return name
	}

	return "UNKNOWN"
}

// Constants for the bitfields within snd_interval.flags to match C enum.
const (
	SNDRV_PCM_INTERVAL_OPENMIN = 1 << 0
	SNDRV_PCM_INTERVAL_OPENMAX = 1 << 1
	SNDRV_PCM_INTERVAL_INTEGER = 1 << 2
	SNDRV_PCM_INTERVAL_EMPTY   = 1 << 3
)

const (
	SNDRV_PCM_SYNC_PTR_HWSYNC    = 1 << 0
	SNDRV_PCM_SYNC_PTR_APPL      = 1 << 1
	SNDRV_PCM_SYNC_PTR_AVAIL_MIN = 1 << 2
)

const (
	SNDRV_PCM_ACCESS_MMAP_INTERLEAVED = 0
	SNDRV_PCM_ACCESS_RW_INTERLEAVED   = 3
)

// PcmParam identifies a hardware parameter for a PCM device.
// These values correspond to the SNDRV_PCM_HW_PARAM_* constants.
type PcmParam int

const (
	SNDRV_PCM_HW_PARAM_ACCESS       PcmParam = 0
	SNDRV_PCM_HW_PARAM_FORMAT       PcmParam = 1
	SNDRV_PCM_HW_PARAM_SUBFORMAT    PcmParam = 2
	SNDRV_PCM_HW_PARAM_SAMPLE_BITS  PcmParam = 8
	SNDRV_PCM_HW_PARAM_FRAME_BITS   PcmParam = 9
	SNDRV_PCM_HW_PARAM_CHANNELS     PcmParam = 10
	SNDRV_PCM_HW_PARAM_RATE         PcmParam = 11
	SNDRV_PCM_HW_PARAM_PERIOD_TIME  PcmParam = 12
	SNDRV_PCM_HW_PARAM_PERIOD_SIZE  PcmParam = 13
	SNDRV_PCM_HW_PARAM_PERIOD_BYTES PcmParam = 14
	SNDRV_PCM_HW_PARAM_PERIODS      PcmParam = 15
	SNDRV_PCM_HW_PARAM_BUFFER_TIME  PcmParam = 16
	SNDRV_PCM_HW_PARAM_BUFFER_SIZE  PcmParam = 17
	SNDRV_PCM_HW_PARAM_BUFFER_BYTES PcmParam = 18
	SNDRV_PCM_HW_PARAM_TICK_TIME    PcmParam = 19
)

var pcmParamNames = map[PcmParam]string{
	SNDRV_PCM_HW_PARAM_ACCESS:      "access",
	SNDRV_PCM_HW_PARAM_FORMAT:      "format",
	SNDRV_PCM_HW_PARAM_CHANNELS:    "channels",
	SNDRV_PCM_HW_PARAM_RATE:        "rate",
	SNDRV_PCM_HW_PARAM_PERIOD_TIME: "period time",
	SNDRV_PCM_HW_PARAM_PERIOD_SIZE: "period size",
	SNDRV_PCM_HW_PARAM_PERIODS:     "periods",
	SNDRV_PCM_HW_PARAM_BUFFER_TIME: "buffer time",
	SNDRV_PCM_HW_PARAM_BUFFER_SIZE: "buffer size",
}

// String returns a short name of the parameter.
func (p PcmParam) String() string {
	if name, ok := pcmParamNames[p]; ok {
		return name
	}

	return "param"
}
