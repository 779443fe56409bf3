package siouart

import (
	"fmt"
	"time"
)

// FramingError indicates that a stop bit wasn't received where it was expected.
type FramingError struct {
	// Start is the time of the start bit of the discarded frame.
	Start time.Duration
	// At is the time of the missing stop bit.
	At time.Duration
	// Word holds the discarded data bits.
	Word uint32
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing error: missing stop bit at %v, frame started at %v (word 0x%07X)",
		e.At, e.Start, e.Word)
}

// SyncLossError indicates that the bit clock was lost inside a frame.
type SyncLossError struct {
	// Start is the time of the start bit of the discarded frame.
	Start time.Duration
	// At is the time of the invalid bit cell.
	At time.Duration
	// Bits is the count of data bits received before the loss.
	Bits int
}

func (e *SyncLossError) Error() string {
	return fmt.Sprintf("sync lost at %v after %d data bits, frame started at %v",
		e.At, e.Bits, e.Start)
}

// PreambleNoiseError indicates pulses shorter than a bit period outside a frame,
// as sent while the SIO powers up or down.
type PreambleNoiseError struct {
	// At is the time of the pulse.
	At time.Duration
}

func (e *PreambleNoiseError) Error() string {
	return fmt.Sprintf("preamble noise at %v", e.At)
}
