// Package siouart is the decoder of the Nuvoton SIO debug UART ("serial port 80h").
//
// A frame consists of one start bit (low), 26 data bits (LSB first) and one or more stop bits (high).
package siouart

import (
	"errors"
	"fmt"
	"time"

	"github.com/womat/debug"
	"siodbg/pkg/line"
)

const (
	// DefaultDataBits is the count of data bits of a frame.
	DefaultDataBits = 26
	// DefaultStopBits is the count of required stop bits, additional stop bits are accepted.
	DefaultStopBits = 1
	// MaxDataBits is the maximum of data bits a frame word can hold.
	MaxDataBits = 32
)

const (
	// idle is the process state to wait for a start bit.
	idle stateType = iota
	// accumulating is the process state to receive the data bits.
	accumulating
	// stopCheck is the process state to receive the stop bits.
	stopCheck
)

// ErrInvalidConfig is returned by NewDecoder if the frame format isn't supported.
var ErrInvalidConfig = errors.New("invalid frame configuration")

// stateType represents the state of the decoding process.
type stateType int

// Config defines the frame format.
type Config struct {
	// DataBits is the count of data bits.
	DataBits int
	// StopBits is the count of required stop bits.
	StopBits int
}

// DefaultConfig returns the frame format of the SIO debug UART.
func DefaultConfig() Config {
	return Config{DataBits: DefaultDataBits, StopBits: DefaultStopBits}
}

// Validate checks the frame format.
func (c Config) Validate() error {
	if c.DataBits < 1 || c.DataBits > MaxDataBits {
		return fmt.Errorf("%w: %d data bits", ErrInvalidConfig, c.DataBits)
	}
	if c.StopBits < 1 {
		return fmt.Errorf("%w: %d stop bits", ErrInvalidConfig, c.StopBits)
	}
	return nil
}

// FrameBits returns the length of a frame in bit cells.
func (c Config) FrameBits() int {
	return 1 + c.DataBits + c.StopBits
}

// Mask returns the bit mask of a data word.
func (c Config) Mask() uint32 {
	return uint32(1<<uint(c.DataBits) - 1)
}

// Frame is a received data word.
type Frame struct {
	// Word holds the data bits, the first received bit is bit 0.
	Word uint32
	// Start is the time of the start bit.
	Start time.Duration
	// End is the time of the (first) stop bit.
	End time.Duration
}

func (f Frame) String() string {
	return fmt.Sprintf("%07X", f.Word)
}

// Decoder assembles bit cells to frames.
type Decoder struct {
	config Config
	// state contains the current decoding state.
	state stateType
	// armed is set by a high bit cell or a rejected stop bit; only a low cell at a frame boundary starts a frame.
	armed bool
	// rxBit is the number of the received data bits of the rxRegister.
	rxBit int
	// rxRegister is the buffer of the currently received word.
	rxRegister uint32
	// rxStop is the number of the received stop bits.
	rxStop int
	// start is the time of the current start bit.
	start time.Duration

	// onFrame receives the valid frames.
	onFrame func(Frame)
	// onError receives framing errors, sync losses and preamble noise.
	onError func(error)
}

// NewDecoder initials a new frame decoder.
// onFrame receives every valid frame, onError (optional) every rejected frame or noise.
func NewDecoder(config Config, onFrame func(Frame), onError func(error)) (*Decoder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Decoder{
		config:  config,
		state:   idle,
		onFrame: onFrame,
		onError: onError,
	}, nil
}

// Push adds the next bit cell.
func (d *Decoder) Push(bit line.Bit) {
	switch bit.Level {
	case line.Invalid:
		d.invalid(bit)
	case line.High:
		d.high(bit)
	case line.Low:
		d.low(bit)
	}
}

// Idle reports whether the decoder is between two frames.
func (d *Decoder) Idle() bool {
	return d.state == idle
}

// Reset discards a frame in progress and waits for an idle line.
func (d *Decoder) Reset() {
	d.state = idle
	d.armed = false
	d.rxBit = 0
	d.rxStop = 0
	d.rxRegister = 0
}

// invalid handles bit cells which couldn't be recovered.
// Outside a frame it is preamble noise, inside a frame the frame is lost.
func (d *Decoder) invalid(bit line.Bit) {
	if d.state == idle {
		d.report(&PreambleNoiseError{At: bit.Timestamp})
	} else {
		debug.DebugLog.Printf("sync lost at %v, discard frame started at %v", bit.Timestamp, d.start)
		d.report(&SyncLossError{Start: d.start, At: bit.Timestamp, Bits: d.rxBit})
	}

	d.Reset()
}

// high handles idle bits, high data bits and stop bits.
// The last required stop bit completes the frame.
func (d *Decoder) high(bit line.Bit) {
	switch d.state {
	case idle:
		// idle line or additional stop bits
		d.armed = true
	case accumulating:
		d.rxRegister |= 1 << uint(d.rxBit)
		d.data()
	case stopCheck:
		d.rxStop++
		if d.rxStop < d.config.StopBits {
			return
		}

		f := Frame{Word: d.rxRegister, Start: d.start, End: bit.Timestamp}
		d.state = idle
		d.armed = true
		if d.onFrame != nil {
			d.onFrame(f)
		}
	}
}

// low handles start bits, low data bits and missing stop bits.
func (d *Decoder) low(bit line.Bit) {
	switch d.state {
	case idle:
		if !d.armed {
			// the line didn't return to idle since the last error
			return
		}

		// start bit received
		d.state = accumulating
		d.start = bit.Timestamp
		d.rxRegister = 0
		d.rxBit = 0
		d.rxStop = 0
	case accumulating:
		d.data()
	case stopCheck:
		// no stop bit received, wait for the next falling edge
		debug.DebugLog.Printf("missing stop bit at %v, discard frame started at %v", bit.Timestamp, d.start)
		d.report(&FramingError{Start: d.start, At: bit.Timestamp, Word: d.rxRegister})
		d.Reset()
		// the frame boundary was consumed, the next low cell is a start bit
		d.armed = true
	}
}

// data counts a received data bit.
func (d *Decoder) data() {
	d.rxBit++
	if d.rxBit == d.config.DataBits {
		d.state = stopCheck
		d.rxStop = 0
	}
}

func (d *Decoder) report(err error) {
	if d.onError != nil {
		d.onError(err)
	}
}
