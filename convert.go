package pcmout

import (
	"encoding/binary"
	"fmt"
)

// Canonical input format: interleaved signed 16-bit stereo in host byte order.
const (
	Channels       = 2
	BytesPerSample = 2
	FrameSize      = Channels * BytesPerSample
)

// SampleMode is the sample layout a device consumes.
type SampleMode int

const (
	// ModeS16Stereo is signed 16-bit stereo, identical to the canonical input.
	ModeS16Stereo SampleMode = iota
	// ModeU8Stereo is unsigned 8-bit stereo.
	ModeU8Stereo
	// ModeU8Mono is unsigned 8-bit mono.
	ModeU8Mono
)

// String returns a human-readable name for the mode.
func (m SampleMode) String() string {
	switch m {
	case ModeS16Stereo:
		return "S16 stereo"
	case ModeU8Stereo:
		return "U8 stereo"
	case ModeU8Mono:
		return "U8 mono"
	default:
		return fmt.Sprintf("SampleMode(%d)", int(m))
	}
}

// FrameSize returns the size of one frame in bytes for the mode.
func (m SampleMode) FrameSize() int {
	switch m {
	case ModeU8Stereo:
		return 2
	case ModeU8Mono:
		return 1
	default:
		return FrameSize
	}
}

// Silence returns the byte value that plays as silence in the mode.
func (m SampleMode) Silence() byte {
	if m == ModeS16Stereo {
		return 0x00
	}

	return 0x80
}

// ConvertedLen returns how many bytes Convert produces for n bytes of canonical input.
// A trailing partial frame is ignored.
func ConvertedLen(n int, mode SampleMode) int {
	return n / FrameSize * mode.FrameSize()
}

// Convert converts canonical samples from src into dst and returns the number of bytes written.
// dst must hold at least ConvertedLen(len(src), mode) bytes and may be src itself.
//
// 8-bit stereo stores (s >> 8) + 128 for every sample. 8-bit mono stores
// ((l + r) >> 9) + 128 for every frame.
func Convert(dst, src []byte, mode SampleMode) int {
	frames := len(src) / FrameSize

	switch mode {
	case ModeU8Stereo:
		samples := frames * Channels
		for i := 0; i < samples; i++ {
			s := int16(binary.NativeEndian.Uint16(src[i*BytesPerSample:]))
			dst[i] = uint8((int(s) >> 8) + 128)
		}

		return samples
	case ModeU8Mono:
		for i := 0; i < frames; i++ {
			l := int16(binary.NativeEndian.Uint16(src[i*FrameSize:]))
			r := int16(binary.NativeEndian.Uint16(src[i*FrameSize+BytesPerSample:]))
			dst[i] = uint8(((int(l) + int(r)) >> 9) + 128)
		}

		return frames
	default:
		return copy(dst, src[:frames*FrameSize])
	}
}
