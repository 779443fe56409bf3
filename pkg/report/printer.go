// Package report formats the output of a session as text.
package report

import (
	"fmt"
	"io"
	"strings"

	"siodbg/pkg/portio"
	"siodbg/pkg/postcode"
)

// Printer is a session sink which writes one line per event, code or error.
type Printer struct {
	w io.Writer
	// Events enables the output of write events.
	Events bool
	// Codes enables the output of POST codes.
	Codes bool
	// Errors enables the output of reported errors.
	Errors bool
	// Verbose adds the event index and the carried lanes to the POST codes.
	Verbose bool
	// BasePort is the port of lane 0, used to name the carried lanes.
	BasePort uint8

	err error
}

// NewPrinter generates a printer of POST codes.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, Codes: true, BasePort: postcode.DefaultBasePort}
}

func (p *Printer) Event(ev portio.WriteEvent) {
	if p.Events {
		p.printf("%v\n", ev)
	}
}

func (p *Printer) Code(c postcode.Code) {
	if !p.Codes {
		return
	}

	if !p.Verbose {
		p.printf("POST code: %v\n", c)
		return
	}

	var carried []string
	for lane := 0; lane < c.Width/8; lane++ {
		if c.Carried(lane) {
			carried = append(carried, fmt.Sprintf("0x%02X", int(p.BasePort)+lane))
		}
	}
	if len(carried) == 0 {
		carried = []string{"none"}
	}

	p.printf("POST code: %v (#%d carried=%s)\n", c, c.Index, strings.Join(carried, ","))
}

func (p *Printer) Report(err error) {
	if p.Errors {
		p.printf("error: %v\n", err)
	}
}

// Err returns the first write error.
func (p *Printer) Err() error {
	return p.err
}

func (p *Printer) printf(format string, a ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, a...)
}
