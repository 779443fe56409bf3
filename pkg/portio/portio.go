// Package portio splits SIO debug frames into I/O port write events.
//
// Frame layout (bit 0 is received first):
//
//	bits  7..0   I/O port address (0x80..0x83)
//	bits 15..8   high field, recorded verbatim
//	bits 17..16  unknown field, recorded verbatim
//	bits 25..18  data byte written to the port
package portio

import (
	"errors"
	"fmt"
	"time"

	"siodbg/pkg/siouart"
)

const (
	// DefaultMinPort is the lowest accepted port address.
	DefaultMinPort = 0x80
	// DefaultMaxPort is the highest accepted port address.
	DefaultMaxPort = 0x83
)

const (
	portShift    = 0
	highShift    = 8
	unknownShift = 16
	valueShift   = 18

	byteMask    = 0xFF
	unknownMask = 0x3
)

// ErrInvalidConfig is returned by NewSplitter for an empty port range.
var ErrInvalidConfig = errors.New("invalid port range")

// WriteEvent is a write of one byte to an I/O port.
type WriteEvent struct {
	// Index is the position of the event in the event stream.
	Index int
	// Time is the time of the start bit of the frame.
	Time time.Duration
	// Port is the I/O port address.
	Port uint8
	// Value is the byte written to the port.
	Value uint8
	// High is the content of bits 15..8.
	High uint8
	// Unknown is the content of bits 17..16.
	Unknown uint8
}

func (e WriteEvent) String() string {
	return fmt.Sprintf("#%d 0x%02X <- 0x%02X high=0x%02X unknown=%d", e.Index, e.Port, e.Value, e.High, e.Unknown)
}

// InvalidPortAddressError indicates a valid frame with a port address outside the accepted range.
type InvalidPortAddressError struct {
	Port    uint8
	Word    uint32
	Time    time.Duration
	MinPort uint8
	MaxPort uint8
}

func (e *InvalidPortAddressError) Error() string {
	return fmt.Sprintf("invalid port address 0x%02X at %v: valid range is 0x%02X-0x%02X (word 0x%07X)",
		e.Port, e.Time, e.MinPort, e.MaxPort, e.Word)
}

// Splitter converts frames to write events.
type Splitter struct {
	minPort uint8
	maxPort uint8
}

// NewSplitter generates a splitter accepting the ports minPort..maxPort.
func NewSplitter(minPort, maxPort uint8) (Splitter, error) {
	if minPort > maxPort {
		return Splitter{}, fmt.Errorf("%w: 0x%02X-0x%02X", ErrInvalidConfig, minPort, maxPort)
	}
	return Splitter{minPort: minPort, maxPort: maxPort}, nil
}

// DefaultSplitter returns a splitter accepting the ports 0x80..0x83.
func DefaultSplitter() Splitter {
	return Splitter{minPort: DefaultMinPort, maxPort: DefaultMaxPort}
}

// Split converts a frame to a write event.
// A port address outside the accepted range returns an *InvalidPortAddressError.
func (s Splitter) Split(f siouart.Frame) (WriteEvent, error) {
	port, high, unknown, value := Fields(f.Word)

	if port < s.minPort || port > s.maxPort {
		return WriteEvent{}, &InvalidPortAddressError{
			Port:    port,
			Word:    f.Word,
			Time:    f.Start,
			MinPort: s.minPort,
			MaxPort: s.maxPort,
		}
	}

	return WriteEvent{
		Time:    f.Start,
		Port:    port,
		Value:   value,
		High:    high,
		Unknown: unknown,
	}, nil
}

// Fields splits a frame word into its fields.
func Fields(word uint32) (port, high, unknown, value uint8) {
	port = uint8(word >> portShift & byteMask)
	high = uint8(word >> highShift & byteMask)
	unknown = uint8(word >> unknownShift & unknownMask)
	value = uint8(word >> valueShift & byteMask)
	return
}

// Word assembles a frame word from its fields.
func Word(port, high, unknown, value uint8) uint32 {
	return uint32(port)<<portShift |
		uint32(high)<<highShift |
		uint32(unknown&unknownMask)<<unknownShift |
		uint32(value)<<valueShift
}
