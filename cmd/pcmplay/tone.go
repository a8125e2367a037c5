package main

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// sine is an endless sine oscillator.
type sine struct {
	step  float64
	phase float64
}

func (s *sine) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		v := math.Sin(2 * math.Pi * s.phase)
		samples[i][0], samples[i][1] = v, v

		s.phase += s.step
		if s.phase >= 1 {
			s.phase--
		}
	}

	return len(samples), true
}

func (s *sine) Err() error { return nil }

// toneSource returns a sine at freq Hz lasting d, attenuated by volume (log2 steps).
func toneSource(rate beep.SampleRate, freq float64, d time.Duration, volume float64) beep.Streamer {
	osc := &sine{step: freq / float64(rate)}

	return &effects.Volume{
		Streamer: beep.Take(rate.N(d), osc),
		Base:     2,
		Volume:   volume,
	}
}
