package pcmout

import "errors"

var (
	// ErrDeviceUnavailable means the hardware or sound service could not be opened or claimed.
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrDeviceConfig means format, rate or buffer negotiation failed.
	ErrDeviceConfig = errors.New("device configuration failed")
	// ErrWrite is a fatal I/O failure after open that is not a recoverable underrun.
	ErrWrite = errors.New("write failed")
	// ErrDeviceTimeout means the device made no progress within the configured write timeout.
	ErrDeviceTimeout = errors.New("device timeout")
	// ErrClosed is returned by Write after Close.
	ErrClosed = errors.New("stream closed")
	// ErrUnknownDriver is returned by Open for a driver name that is not registered.
	ErrUnknownDriver = errors.New("unknown driver")
	// ErrShortFrame is returned by Write when data does not hold a whole number of frames.
	ErrShortFrame = errors.New("data is not a whole number of frames")
)
