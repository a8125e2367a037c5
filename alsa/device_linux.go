//go:build linux && (amd64 || arm64)

package alsa

import (
	"fmt"

	"github.com/gen2brain/pcmout"
	"github.com/gen2brain/pcmout/internal/sndrv"
)

type device struct {
	*sndrv.PCM
}

func (d device) Xrun(err error) bool {
	return sndrv.InXrun(err) || d.State() == sndrv.SNDRV_PCM_STATE_XRUN
}

func openDevice(name string, rate uint32) (pcmDevice, error) {
	pcm, err := sndrv.OpenPlayback(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", pcmout.ErrDeviceUnavailable, name, err)
	}

	err = pcm.Configure(sndrv.HwRequest{
		Format:     sndrv.SNDRV_PCM_FORMAT_S16_LE,
		Channels:   pcmout.Channels,
		Rate:       rate,
		BufferTime: BufferTime,
		PeriodTime: PeriodTime,
	})
	if err != nil {
		_ = pcm.Close()

		return nil, fmt.Errorf("%w: %s: %w", pcmout.ErrDeviceConfig, name, err)
	}

	return device{pcm}, nil
}
