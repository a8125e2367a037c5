package dossb

import "io"

// Caps are the capabilities of a card.
type Caps uint8

const (
	// Caps16Bit means the card plays signed 16-bit samples.
	Caps16Bit Caps = 1 << iota
	// CapsStereo means the card plays two channels.
	CapsStereo
)

// Has reports whether all of c are set.
func (caps Caps) Has(c Caps) bool {
	return caps&c == c
}

// Card is a Sound Blaster class card that plays a circular DMA buffer.
type Card interface {
	// Caps returns the card capabilities.
	Caps() Caps
	// MaxRate returns the highest rate the card plays in stereo or mono.
	MaxRate(stereo bool) uint32
	// SetOutput turns the speaker on or off.
	SetOutput(enable bool)
	// StartDMA starts auto-init DMA playback of the whole buffer at rate.
	StartDMA(rate uint32, bits16, stereo bool) error
	// StopDMA stops playback.
	StopDMA()
	// BufferSize returns the DMA buffer size in bytes.
	BufferSize() int
	// WriteAt copies into the DMA buffer at off.
	io.WriterAt
	// Fill sets every byte of the DMA buffer to b.
	Fill(b byte)
	// Position returns the byte offset the card is playing from.
	Position() int
	// Close releases the card.
	Close() error
}
