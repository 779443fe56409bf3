// Package sampler recovers UART bit cells from a sampled line.
//
// Each interval between two edges is divided into bit cells of the nominal bit period,
// so every edge re-anchors the bit clock and a drifting transmitter is tolerated as long
// as an interval deviates less than Tolerance bit periods from a whole number of cells.
package sampler

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/womat/debug"
	"siodbg/pkg/line"
)

const (
	// DefaultBaudRate is the bit rate of the SIO debug UART.
	DefaultBaudRate = 1_500_000
	// DefaultTolerance is the accepted deviation of an edge from a bit cell boundary (in bit periods).
	DefaultTolerance = 0.3
	// DefaultMaxRun is the length of a frame in bit cells (start bit, 26 data bits, stop bit).
	DefaultMaxRun = 28
)

// ErrInvalidConfig is returned by New if the configuration can't be used to sample the line.
var ErrInvalidConfig = errors.New("invalid sampler configuration")

// Config defines the timing of the sampled line.
type Config struct {
	// BaudRate is the nominal bit rate in bit cells per second.
	BaudRate float64
	// Tolerance is the accepted deviation of an interval from a whole number of bit cells.
	// Intervals shorter than 1-Tolerance bit periods are reported as invalid cells.
	Tolerance float64
	// MaxRun limits the number of cells emitted for a single interval.
	// Longer runs (idle line, break condition) are truncated.
	MaxRun int
	// Invert inverts the line level before sampling.
	Invert bool
}

// DefaultConfig returns the timing of the SIO debug UART.
func DefaultConfig() Config {
	return Config{
		BaudRate:  DefaultBaudRate,
		Tolerance: DefaultTolerance,
		MaxRun:    DefaultMaxRun,
	}
}

// BitPeriod returns the nominal duration of a bit cell.
func (c Config) BitPeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.BaudRate)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.BaudRate <= 0:
		return fmt.Errorf("%w: baud rate %v", ErrInvalidConfig, c.BaudRate)
	case c.Tolerance <= 0 || c.Tolerance >= 0.5:
		return fmt.Errorf("%w: tolerance %v must be within (0, 0.5)", ErrInvalidConfig, c.Tolerance)
	case c.MaxRun < 2:
		return fmt.Errorf("%w: max run %v", ErrInvalidConfig, c.MaxRun)
	}
	return nil
}

// Stats are the counters of a sampler.
type Stats struct {
	// Edges is the count of level changes.
	Edges int
	// Bits is the count of emitted valid bit cells.
	Bits int
	// Glitches is the count of pulses shorter than a bit period.
	Glitches int
	// NearMisses is the count of intervals outside of the tolerance band.
	NearMisses int
}

// Sampler converts samples to bit cells.
type Sampler struct {
	config Config
	// period is the bit period in nanoseconds.
	period float64

	// started is set by the first sample.
	started bool
	// level is the current line level.
	level line.Level
	// edge is the time of the last level change.
	edge time.Duration
	// last is the time of the last sample.
	last time.Duration
	// saturated is set if the cells of the current level were already emitted,
	// the level lasts at least MaxRun cells.
	saturated bool

	stats Stats
	// emit receives the bit cells
	emit func(line.Bit)
}

// New initials a new sampler which sends the recovered bit cells to emit.
func New(config Config, emit func(line.Bit)) (*Sampler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Sampler{
		config: config,
		period: float64(time.Second) / config.BaudRate,
		emit:   emit,
	}, nil
}

// Push adds the next sample. Samples must be pushed in time order,
// an older sample than the last one is dropped.
func (s *Sampler) Push(sample line.Sample) {
	level := sample.Level
	if level == line.Invalid {
		return
	}
	if s.config.Invert {
		level = level.Invert()
	}

	if !s.started {
		s.started = true
		s.level = level
		s.edge = sample.Timestamp
		s.last = sample.Timestamp
		return
	}

	if sample.Timestamp < s.last {
		debug.DebugLog.Printf("drop sample at %v, it is older than %v", sample.Timestamp, s.last)
		return
	}
	s.last = sample.Timestamp

	if level == s.level {
		// a long idle level is emitted before the next edge, this closes the stop bit of a live line
		if !s.saturated && float64(sample.Timestamp-s.edge) >= float64(s.config.MaxRun)*s.period {
			s.interval(sample.Timestamp, false)
			s.saturated = true
		}
		return
	}

	s.stats.Edges++
	if !s.saturated {
		s.interval(sample.Timestamp, false)
	}
	s.level = level
	s.edge = sample.Timestamp
	s.saturated = false
}

// Flush emits the bit cells between the last edge and the last sample.
// It is called at the end of a capture; the stop bit of the last frame is usually
// only terminated by the end of the capture.
func (s *Sampler) Flush() {
	if !s.started || s.saturated || s.last <= s.edge {
		return
	}

	s.interval(s.last, true)
	s.edge = s.last
	s.saturated = false
}

// Reset restarts the sampler, the next sample defines the idle level.
func (s *Sampler) Reset() {
	s.started = false
	s.saturated = false
	s.stats = Stats{}
}

// Stats returns the counters since the last reset.
func (s *Sampler) Stats() Stats {
	return s.stats
}

// interval divides the interval from the last edge to end into bit cells of the current level.
// A partial interval (end of capture) never reports a glitch.
func (s *Sampler) interval(end time.Duration, partial bool) {
	d := end - s.edge
	cells := float64(d) / s.period

	if cells < 1-s.config.Tolerance {
		if partial {
			return
		}

		s.stats.Glitches++
		debug.TraceLog.Printf("%v pulse of %v at %v is shorter than a bit period", s.level, d, s.edge)
		s.emit(line.Bit{Timestamp: s.edge, Level: line.Invalid})
		return
	}

	n := int(math.Round(cells))
	if n < 1 {
		n = 1
	}

	// runs beyond a frame are idle, their length is irrelevant
	if dev := math.Abs(cells - float64(n)); dev > s.config.Tolerance && !partial && n <= s.config.MaxRun {
		s.stats.NearMisses++
		debug.DebugLog.Printf("near miss: %v interval of %v at %v is %.2f bit periods", s.level, d, s.edge, cells)
	}

	if n > s.config.MaxRun {
		n = s.config.MaxRun
	}

	for i := 0; i < n; i++ {
		s.stats.Bits++
		s.emit(line.Bit{Timestamp: s.edge + time.Duration(float64(i)*s.period), Level: s.level})
	}
}
