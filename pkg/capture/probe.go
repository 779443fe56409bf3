package capture

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
	"github.com/womat/debug"
	"siodbg/pkg/siouart"
)

// Probe is a debug probe which receives the SIO debug line and forwards the framed words
// over a serial port, one hex word per line.
type Probe struct {
	port     *serial.Port
	reader   *FrameLogReader
	dataBits int
}

// OpenProbe opens the serial port of a probe.
func OpenProbe(device string, baud int, readTimeout time.Duration, dataBits int) (*Probe, error) {
	c := &serial.Config{Name: device, Baud: baud, ReadTimeout: readTimeout}

	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("open probe %q: %w", device, err)
	}

	debug.InfoLog.Printf("probe %s opened with %d baud", device, baud)
	return &Probe{port: port, reader: NewFrameLogReader(port, dataBits), dataBits: dataBits}, nil
}

// ReadFrame returns the next frame received by the probe.
// It blocks until a frame is received or the port is closed.
func (p *Probe) ReadFrame() (siouart.Frame, error) {
	for {
		f, err := p.reader.ReadFrame()
		if !errors.Is(err, io.EOF) {
			return f, err
		}

		// a read timeout ends the line scanner, continue with a new one
		p.reader = NewFrameLogReader(p.port, p.dataBits)
	}
}

// Close closes the serial port, a blocked ReadFrame returns.
func (p *Probe) Close() error {
	return p.port.Close()
}
