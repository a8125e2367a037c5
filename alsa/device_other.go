//go:build !(linux && (amd64 || arm64))

package alsa

import (
	"fmt"
	"runtime"

	"github.com/gen2brain/pcmout"
)

func openDevice(name string, _ uint32) (pcmDevice, error) {
	return nil, fmt.Errorf("%w: %s: ALSA is not supported on %s/%s",
		pcmout.ErrDeviceUnavailable, name, runtime.GOOS, runtime.GOARCH)
}
