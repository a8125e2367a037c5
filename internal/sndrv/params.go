//go:build linux && (amd64 || arm64)

package sndrv

import (
	"fmt"
	"unsafe"
)

// refineFunc narrows a parameter space in place, the kernel's HW_REFINE.
// It is a variable so the negotiation logic can be tested without a device.
type refineFunc func(p *sndPcmHwParams) error

// paramInit initializes a sndPcmHwParams struct to allow all possible values.
func paramInit(p *sndPcmHwParams) {
	// Initialize all masks (including reserved) to all-ones.
	for n := range p.Masks {
		for i := range p.Masks[n].Bits {
			p.Masks[n].Bits[i] = ^uint32(0)
		}
	}

	for n := range p.Mres {
		for i := range p.Mres[n].Bits {
			p.Mres[n].Bits[i] = ^uint32(0)
		}
	}

	// Initialize all intervals (including reserved) to the full range.
	for n := range p.Intervals {
		p.Intervals[n] = sndInterval{MinVal: 0, MaxVal: ^uint32(0)}
	}

	for n := range p.Ires {
		p.Ires[n] = sndInterval{MinVal: 0, MaxVal: ^uint32(0)}
	}

	p.Rmask = ^uint32(0)
	p.Info = ^uint32(0)
}

func isMask(param PcmParam) bool {
	return param >= SNDRV_PCM_HW_PARAM_ACCESS && param <= SNDRV_PCM_HW_PARAM_SUBFORMAT
}

func isInterval(param PcmParam) bool {
	return param >= SNDRV_PCM_HW_PARAM_SAMPLE_BITS && param <= SNDRV_PCM_HW_PARAM_TICK_TIME
}

func paramSetMask(p *sndPcmHwParams, param PcmParam, bit uint32) {
	if !isMask(param) {
		return
	}

	mask := &p.Masks[param-SNDRV_PCM_HW_PARAM_ACCESS]
	for i := range mask.Bits {
		mask.Bits[i] = 0
	}

	if bit >= 256 { // SNDRV_MASK_MAX
		return
	}

	mask.Bits[bit>>5] |= 1 << (bit & 31)
}

func paramTestMask(p *sndPcmHwParams, param PcmParam, bit uint32) bool {
	if !isMask(param) || bit >= 256 {
		return false
	}

	mask := &p.Masks[param-SNDRV_PCM_HW_PARAM_ACCESS]

	return mask.Bits[bit>>5]&(1<<(bit&31)) != 0
}

func interval(p *sndPcmHwParams, param PcmParam) *sndInterval {
	if !isInterval(param) {
		return nil
	}

	// The interval array index is the parameter value minus the value of the first interval param.
	return &p.Intervals[param-SNDRV_PCM_HW_PARAM_SAMPLE_BITS]
}

func paramSetInt(p *sndPcmHwParams, param PcmParam, val uint32) {
	if iv := interval(p, param); iv != nil {
		*iv = sndInterval{MinVal: val, MaxVal: val, Flags: SNDRV_PCM_INTERVAL_INTEGER}
	}
}

func paramSetMin(p *sndPcmHwParams, param PcmParam, val uint32) {
	if iv := interval(p, param); iv != nil {
		iv.MinVal = val
		iv.Flags &^= SNDRV_PCM_INTERVAL_OPENMIN
	}
}

func paramSetMax(p *sndPcmHwParams, param PcmParam, val uint32) {
	if iv := interval(p, param); iv != nil {
		iv.MaxVal = val
		iv.Flags &^= SNDRV_PCM_INTERVAL_OPENMAX
	}
}

// paramGetInt reads the MinVal of the interval.
// The driver finalizes the configuration by narrowing the interval.
func paramGetInt(p *sndPcmHwParams, param PcmParam) uint32 {
	if iv := interval(p, param); iv != nil {
		return iv.MinVal
	}

	return 0
}

func paramRange(p *sndPcmHwParams, param PcmParam) (uint32, uint32) {
	if iv := interval(p, param); iv != nil {
		return iv.MinVal, iv.MaxVal
	}

	return 0, 0
}

// refineKernel returns a refineFunc backed by the HW_REFINE ioctl on fd.
func refineKernel(fd uintptr) refineFunc {
	return func(p *sndPcmHwParams) error {
		p.Rmask = ^uint32(0)

		return ioctl(fd, SNDRV_PCM_IOCTL_HW_REFINE, uintptr(unsafe.Pointer(p)))
	}
}

// refineNear narrows param to the supported value nearest to target and returns that value.
// This is what snd_pcm_hw_params_set_*_near does in alsa-lib.
func refineNear(refine refineFunc, p *sndPcmHwParams, param PcmParam, target uint32) (uint32, error) {
	lo, hi := paramRange(p, param)
	if lo > hi {
		return 0, fmt.Errorf("%s has an empty range", param)
	}

	if target < lo {
		target = lo
	}

	if target > hi {
		target = hi
	}

	exact := *p
	paramSetInt(&exact, param, target)
	if err := refine(&exact); err == nil {
		*p = exact

		return paramGetInt(p, param), nil
	}

	// The target itself is not reachable, look at the nearest values on both sides.
	var (
		best     *sndPcmHwParams
		bestVal  uint32
		bestDist uint32
	)

	above := *p
	paramSetMin(&above, param, target)
	if err := refine(&above); err == nil {
		v, _ := paramRange(&above, param)
		best, bestVal, bestDist = &above, v, v-target
	}

	below := *p
	paramSetMax(&below, param, target)
	if err := refine(&below); err == nil {
		_, v := paramRange(&below, param)
		if best == nil || target-v < bestDist {
			best, bestVal = &below, v
		}
	}

	if best == nil {
		return 0, fmt.Errorf("no %s near %d is supported", param, target)
	}

	// Pin the chosen value if the driver allows it, otherwise keep the narrowed range.
	pinned := *best
	paramSetInt(&pinned, param, bestVal)
	if err := refine(&pinned); err == nil {
		*p = pinned
	} else {
		*p = *best
	}

	return paramGetInt(p, param), nil
}

// HwRequest describes the hardware configuration to negotiate.
// Times are in microseconds; zero leaves the parameter to the driver.
type HwRequest struct {
	Format     PcmFormat
	Channels   uint32
	Rate       uint32
	BufferTime uint32
	PeriodTime uint32
}

// negotiate runs the same sequence of steps as the classic alsa-lib setup:
// access, format, channels, rate near, buffer time near, period time near.
func negotiate(refine refineFunc, req HwRequest) (*sndPcmHwParams, error) {
	hw := &sndPcmHwParams{}
	paramInit(hw)

	if err := refine(hw); err != nil {
		return nil, fmt.Errorf("no configuration available for playback: %w", err)
	}

	access := *hw
	paramSetMask(&access, SNDRV_PCM_HW_PARAM_ACCESS, SNDRV_PCM_ACCESS_RW_INTERLEAVED)
	if err := refine(&access); err != nil {
		return nil, fmt.Errorf("cannot set access mode: %w", err)
	}
	*hw = access

	format := *hw
	paramSetMask(&format, SNDRV_PCM_HW_PARAM_FORMAT, uint32(req.Format))
	if err := refine(&format); err != nil {
		return nil, fmt.Errorf("format %d is not supported: %w", req.Format, err)
	}
	*hw = format

	channels := *hw
	paramSetInt(&channels, SNDRV_PCM_HW_PARAM_CHANNELS, req.Channels)
	if err := refine(&channels); err != nil {
		return nil, fmt.Errorf("%d channels are not supported: %w", req.Channels, err)
	}
	*hw = channels

	if _, err := refineNear(refine, hw, SNDRV_PCM_HW_PARAM_RATE, req.Rate); err != nil {
		return nil, fmt.Errorf("%dHz is not supported: %w", req.Rate, err)
	}

	if req.BufferTime > 0 {
		if _, err := refineNear(refine, hw, SNDRV_PCM_HW_PARAM_BUFFER_TIME, req.BufferTime); err != nil {
			return nil, fmt.Errorf("set buffer time failed: %w", err)
		}
	}

	if req.PeriodTime > 0 {
		if _, err := refineNear(refine, hw, SNDRV_PCM_HW_PARAM_PERIOD_TIME, req.PeriodTime); err != nil {
			return nil, fmt.Errorf("set period time failed: %w", err)
		}
	}

	return hw, nil
}
