// Package gpio is the watcher of a GPIO line connected to the SIO debug output.
//
// Every edge of the line is timestamped by the kernel and sent as a sample.
// A GPIO line can't follow the 1.5 Mbaud of the SIO debug UART,
// it serves slowed down protocol variants and test setups.
package gpio

import (
	"errors"
	"io"
	"sync/atomic"
	"time"

	"siodbg/pkg/line"
)

var (
	// ErrInvalidParam is returned by Open for an invalid line configuration.
	ErrInvalidParam = errors.New("invalid parameters")
	// ErrNotSupported is returned by Open on systems without GPIO character devices.
	ErrNotSupported = errors.New("gpio isn't supported on this system")
)

// Config defines the watched line.
type Config struct {
	// Chip is the name of the GPIO chip, e.g. gpiochip0.
	Chip string
	// Offset is the line number of the chip.
	Offset int
	// Bias is the terminator of the line (pullup, pulldown or none).
	Bias string
	// Buffer is the count of buffered edges.
	Buffer int
	// Idle is the quiet time after which the current level is reported again.
	// It closes the stop bit of the last frame.
	Idle time.Duration
}

// Line represents a watched line.
type Line struct {
	// C receives the edges of the line.
	C chan line.Sample

	// initial is the level of the line when it was requested.
	initial line.Sample
	started bool
	last    line.Sample
	// quiet is set if the current level was reported again.
	quiet bool
	idle  time.Duration

	dropped uint64
	closer  io.Closer
}

// ReadSample returns the next edge of the line. If the line is quiet for the idle time,
// the current level is returned once more. ReadSample returns io.EOF after Close.
func (l *Line) ReadSample() (line.Sample, error) {
	if !l.started {
		l.started = true
		l.last = l.initial
		return l.initial, nil
	}

	if l.quiet || l.idle <= 0 {
		s, ok := <-l.C
		return l.next(s, ok)
	}

	timer := time.NewTimer(l.idle)
	defer timer.Stop()

	select {
	case s, ok := <-l.C:
		return l.next(s, ok)
	case <-timer.C:
		l.quiet = true
		return line.Sample{Timestamp: l.last.Timestamp + l.idle, Level: l.last.Level}, nil
	}
}

// Dropped returns the count of edges lost due to a full buffer.
func (l *Line) Dropped() uint64 {
	return atomic.LoadUint64(&l.dropped)
}

// Close releases the line, a blocked ReadSample returns io.EOF.
func (l *Line) Close() error {
	return l.closer.Close()
}

func (l *Line) next(s line.Sample, ok bool) (line.Sample, error) {
	if !ok {
		return line.Sample{}, io.EOF
	}

	l.quiet = false
	l.last = s
	return s, nil
}

// edge queues an edge, it never blocks the event handler.
func (l *Line) edge(s line.Sample) {
	select {
	case l.C <- s:
	default:
		atomic.AddUint64(&l.dropped, 1)
	}
}
