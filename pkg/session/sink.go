package session

import (
	"siodbg/pkg/portio"
	"siodbg/pkg/postcode"
	"siodbg/pkg/siouart"
)

// Sink receives the output of a session in wire order.
type Sink interface {
	// Event receives every accepted write event.
	Event(portio.WriteEvent)
	// Code receives every reassembled POST code.
	Code(postcode.Code)
	// Report receives framing errors, sync losses and invalid port addresses.
	Report(error)
}

// FrameSink is implemented by sinks which also want the raw frames,
// before the port address is checked.
type FrameSink interface {
	Frame(siouart.Frame)
}

// SinkFuncs is a Sink calling the defined functions; nil functions ignore their stream.
type SinkFuncs struct {
	OnFrame  func(siouart.Frame)
	OnEvent  func(portio.WriteEvent)
	OnCode   func(postcode.Code)
	OnReport func(error)
}

func (f SinkFuncs) Frame(fr siouart.Frame) {
	if f.OnFrame != nil {
		f.OnFrame(fr)
	}
}

func (f SinkFuncs) Event(ev portio.WriteEvent) {
	if f.OnEvent != nil {
		f.OnEvent(ev)
	}
}

func (f SinkFuncs) Code(c postcode.Code) {
	if f.OnCode != nil {
		f.OnCode(c)
	}
}

func (f SinkFuncs) Report(err error) {
	if f.OnReport != nil {
		f.OnReport(err)
	}
}

// Tee sends the output to all sinks.
type Tee []Sink

func (t Tee) Frame(f siouart.Frame) {
	for _, s := range t {
		if fs, ok := s.(FrameSink); ok {
			fs.Frame(f)
		}
	}
}

func (t Tee) Event(ev portio.WriteEvent) {
	for _, s := range t {
		s.Event(ev)
	}
}

func (t Tee) Code(c postcode.Code) {
	for _, s := range t {
		s.Code(c)
	}
}

func (t Tee) Report(err error) {
	for _, s := range t {
		s.Report(err)
	}
}

// Collector records the complete output of a session.
type Collector struct {
	Events []portio.WriteEvent
	Codes  []postcode.Code
	Errors []error
}

func (c *Collector) Event(ev portio.WriteEvent) {
	c.Events = append(c.Events, ev)
}

func (c *Collector) Code(code postcode.Code) {
	c.Codes = append(c.Codes, code)
}

func (c *Collector) Report(err error) {
	c.Errors = append(c.Errors, err)
}
