// Package postcode reassembles POST codes from I/O port writes.
//
// Firmware writes a 32-bit POST code byte by byte to the ports 0x80 (least significant byte)
// to 0x83 (most significant byte). Bytes which didn't change since the previous code may be
// omitted, except the most significant byte: its write is always sent and completes the code.
// The assembler keeps the last written byte of every port (shadow) to fill in omitted writes.
package postcode

import (
	"errors"
	"fmt"
	"time"

	"github.com/womat/debug"
	"siodbg/pkg/portio"
)

const (
	// DefaultBasePort is the port of the least significant byte lane.
	DefaultBasePort = 0x80
	// DefaultMSBPort is the port of the most significant byte lane.
	DefaultMSBPort = 0x83
	// DefaultLaneWidth is the width of a byte lane in bits.
	DefaultLaneWidth = 8
	// DefaultCodeWidth is the width of a POST code in bits.
	DefaultCodeWidth = 32

	// MaxLanes is the maximum count of byte lanes of a code.
	MaxLanes = 4
)

// ErrInvalidConfig is returned by New if the lane layout isn't supported.
var ErrInvalidConfig = errors.New("invalid post code configuration")

// Config defines the byte lanes of a POST code.
type Config struct {
	// BasePort is the port of byte lane 0.
	BasePort uint8
	// MSBPort is the port of the most significant byte lane, a write to it completes a code.
	MSBPort uint8
	// LaneWidth is the width of a byte lane in bits.
	LaneWidth int
	// CodeWidth is the width of a code in bits.
	CodeWidth int
	// ByteCodes enables 8-bit codes: a write to the base port which is followed by
	// another write to the base port is reported as an 8-bit code.
	ByteCodes bool
}

// DefaultConfig returns the lane layout of 32-bit POST codes on the ports 0x80..0x83.
func DefaultConfig() Config {
	return Config{
		BasePort:  DefaultBasePort,
		MSBPort:   DefaultMSBPort,
		LaneWidth: DefaultLaneWidth,
		CodeWidth: DefaultCodeWidth,
	}
}

// Lanes returns the count of byte lanes of a code.
func (c Config) Lanes() int {
	if c.LaneWidth == 0 {
		return 0
	}
	return c.CodeWidth / c.LaneWidth
}

// Validate checks the lane layout.
func (c Config) Validate() error {
	if c.LaneWidth != 8 {
		return fmt.Errorf("%w: lane width %d, a port write carries 8 bits", ErrInvalidConfig, c.LaneWidth)
	}
	if c.CodeWidth%c.LaneWidth != 0 || c.Lanes() < 1 || c.Lanes() > MaxLanes {
		return fmt.Errorf("%w: code width %d", ErrInvalidConfig, c.CodeWidth)
	}
	if c.MSBPort < c.BasePort || int(c.MSBPort-c.BasePort) >= c.Lanes() {
		return fmt.Errorf("%w: msb port 0x%02X is not a lane of base port 0x%02X", ErrInvalidConfig, c.MSBPort, c.BasePort)
	}
	return nil
}

// Shadow holds the last written byte of every lane.
type Shadow [MaxLanes]byte

// Code is a reassembled POST code.
type Code struct {
	// Index is the index of the write event which completed the code.
	Index int
	// Time is the time of the write event which completed the code.
	Time time.Duration
	// Value is the POST code.
	Value uint32
	// Width is the width of the code in bits.
	Width int
	// Refreshed has bit n set if lane n was written since the previous code;
	// the other lanes are carried over from the shadow.
	Refreshed uint8
}

func (c Code) String() string {
	return fmt.Sprintf("0x%0*X", (c.Width+3)/4, c.Value)
}

// Carried reports whether the lane was taken from the shadow of a previous code.
func (c Code) Carried(lane int) bool {
	return c.Refreshed&(1<<uint(lane)) == 0
}

// Assembler reassembles POST codes from write events.
type Assembler struct {
	config Config
	// shadow holds the last written byte per lane.
	shadow Shadow
	// refreshed has a bit set for every lane written since the last code.
	refreshed uint8
	// prev is the previous write event of a lane, valid if hasPrev is set.
	prev    portio.WriteEvent
	hasPrev bool
}

// New generates a new assembler with all shadow bytes zero.
func New(config Config) (*Assembler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Assembler{config: config}, nil
}

// Push adds the next write event in wire order.
// It returns a code if the write completed one.
func (a *Assembler) Push(ev portio.WriteEvent) (Code, bool) {
	lane := int(ev.Port) - int(a.config.BasePort)
	if lane < 0 || lane >= a.config.Lanes() {
		debug.TraceLog.Printf("write to port 0x%02X isn't a lane of the post code", ev.Port)
		a.hasPrev = false
		return Code{}, false
	}

	var code Code
	var ok bool

	if a.config.ByteCodes && a.config.BasePort != a.config.MSBPort &&
		ev.Port == a.config.BasePort && a.hasPrev && a.prev.Port == a.config.BasePort {
		// two consecutive writes to the base port: the first one was an 8-bit code
		code = Code{Index: a.prev.Index, Time: a.prev.Time, Value: uint32(a.prev.Value), Width: a.config.LaneWidth, Refreshed: 1}
		ok = true
	}

	a.shadow[lane] = ev.Value
	a.refreshed |= 1 << uint(lane)
	a.prev = ev
	a.hasPrev = true

	if ev.Port == a.config.MSBPort {
		code = Code{
			Index:     ev.Index,
			Time:      ev.Time,
			Value:     a.value(),
			Width:     a.config.CodeWidth,
			Refreshed: a.refreshed,
		}
		ok = true
		a.refreshed = 0
	}

	return code, ok
}

// Shadow returns the current shadow bytes.
func (a *Assembler) Shadow() Shadow {
	return a.shadow
}

// Reset clears the shadow bytes, it starts a new session.
func (a *Assembler) Reset() {
	a.shadow = Shadow{}
	a.refreshed = 0
	a.hasPrev = false
}

// value assembles the code from the shadow bytes, lane 0 is the least significant byte.
func (a *Assembler) value() uint32 {
	var v uint32
	for i := 0; i < a.config.Lanes(); i++ {
		v |= uint32(a.shadow[i]) << uint(i*a.config.LaneWidth)
	}
	return v
}
