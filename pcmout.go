// Package pcmout provides pluggable audio output drivers for rendered PCM.
//
// A driver takes interleaved signed 16-bit stereo samples in host byte order and
// delivers them to one platform sound API. Drivers register themselves when their
// package is imported:
//
//	import _ "github.com/gen2brain/pcmout/alsa"
//
//	stream, err := pcmout.Open(pcmout.Config{Driver: "alsa", Rate: 44100})
//	if err != nil {
//		return err
//	}
//	defer stream.Close()
//
//	rate := stream.Rate() // the rate the device actually accepted
//	err = stream.Write(ctx, samples)
package pcmout

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Stream is an open output stream. Every call except Close must come from the
// goroutine that feeds the stream.
type Stream interface {
	// Write delivers data, blocking until every byte has been handed to the device.
	Write(ctx context.Context, data []byte) error
	// Pause silences output without releasing the device.
	Pause() error
	// Resume undoes Pause. It is safe to call on a stream that is not paused.
	Resume() error
	// Close releases the device. Calling it more than once is a no-op.
	Close() error
	// Rate returns the negotiated sample rate in Hz.
	Rate() uint32
}

// OpenFunc opens a stream for the given configuration.
type OpenFunc func(cfg Config) (Stream, error)

// Driver describes one output backend.
type Driver struct {
	Name        string
	Description string
	Open        OpenFunc
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// preference is the order in which Open picks a driver when none is named.
var preference = []string{"alsa", "dart", "dossb", "wave"}

// Register makes a driver available by name.
// It panics if the name is empty, Open is nil or the name is already taken.
func Register(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if d.Name == "" {
		panic("pcmout: Register driver with empty name")
	}

	if d.Open == nil {
		panic("pcmout: Register driver " + d.Name + " with nil Open")
	}

	if _, dup := drivers[d.Name]; dup {
		panic("pcmout: Register called twice for driver " + d.Name)
	}

	drivers[d.Name] = d
}

// Lookup returns the driver registered under name.
func Lookup(name string) (Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()

	d, ok := drivers[name]

	return d, ok
}

// Drivers returns all registered drivers sorted by name.
func Drivers() []Driver {
	driversMu.RLock()
	defer driversMu.RUnlock()

	list := make([]Driver, 0, len(drivers))
	for _, d := range drivers {
		list = append(list, d)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	return list
}

// Open opens a stream on the driver named by cfg.Driver.
// An empty name selects the first available driver in the order alsa, dart, dossb, wave.
func Open(cfg Config) (Stream, error) {
	cfg = cfg.withDefaults()

	d, err := resolve(cfg.Driver)
	if err != nil {
		return nil, err
	}

	stream, err := d.Open(cfg)
	if err != nil {
		cfg.Logger.Printf("%s: open failed: %v", d.Name, err)

		return nil, err
	}

	if cfg.Rate != 0 && stream.Rate() != cfg.Rate {
		cfg.Logger.Printf("%s: sample rate set to %dHz instead of %d", d.Name, stream.Rate(), cfg.Rate)
	}

	return stream, nil
}

func resolve(name string) (Driver, error) {
	if name != "" {
		d, ok := Lookup(name)
		if !ok {
			return Driver{}, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
		}

		return d, nil
	}

	for _, n := range preference {
		if d, ok := Lookup(n); ok {
			return d, nil
		}
	}

	all := Drivers()
	if len(all) == 0 {
		return Driver{}, fmt.Errorf("%w: no drivers registered", ErrUnknownDriver)
	}

	return all[0], nil
}
