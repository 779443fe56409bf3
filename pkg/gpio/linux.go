//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/gpiod"
	"siodbg/pkg/line"
)

type gpiodCloser struct {
	chip *gpiod.Chip
	line *gpiod.Line
	c    chan line.Sample
}

// Close releases the line and the chip.
//
// Closing the line waits for a running event handler to return,
// so C can be closed afterwards.
func (g *gpiodCloser) Close() error {
	err := g.line.Close()
	close(g.c)
	if e := g.chip.Close(); err == nil {
		err = e
	}
	return err
}

// Open requests the line of a GPIO character device and watches it for edges.
func Open(c Config) (*Line, error) {
	var bias gpiod.LineReqOption
	switch c.Bias {
	case "pullup":
		bias = gpiod.WithPullUp
	case "pulldown":
		bias = gpiod.WithPullDown
	case "none", "":
	default:
		return nil, fmt.Errorf("%w: bias %q", ErrInvalidParam, c.Bias)
	}
	if c.Buffer < 1 {
		return nil, fmt.Errorf("%w: buffer %d", ErrInvalidParam, c.Buffer)
	}

	chip, err := gpiod.NewChip(c.Chip)
	if err != nil {
		return nil, err
	}

	l := &Line{C: make(chan line.Sample, c.Buffer), idle: c.Idle}

	// handler sends the edge to channel C
	handler := func(evt gpiod.LineEvent) {
		l.edge(line.Sample{Timestamp: evt.Timestamp, Level: line.LevelOf(evt.Type == gpiod.LineEventRisingEdge)})
	}

	options := []gpiod.LineReqOption{gpiod.WithEventHandler(handler), gpiod.WithBothEdges, gpiod.AsInput}
	if bias != nil {
		options = append(options, bias)
	}

	gl, err := chip.RequestLine(c.Offset, options...)
	if err != nil {
		_ = chip.Close()
		return nil, err
	}

	v, err := gl.Value()
	if err != nil {
		_ = gl.Close()
		_ = chip.Close()
		return nil, err
	}

	// the initial level lasts since the kernel started, which closes any frame
	l.initial = line.Sample{Timestamp: 0, Level: line.LevelOf(v == 1)}
	l.closer = &gpiodCloser{chip: chip, line: gl, c: l.C}
	return l, nil
}
