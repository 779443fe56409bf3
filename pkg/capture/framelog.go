package capture

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/womat/debug"
	"siodbg/pkg/siouart"
)

// frameLine matches the annotation lines of the sigrok siodebuguart decoder.
var frameLine = regexp.MustCompile(`siodebuguart-\d+: ([0-9A-Fa-f]+)`)

// hexLine matches a bare hex word as sent by a probe.
var hexLine = regexp.MustCompile(`^(?:0[xX])?([0-9A-Fa-f]{1,8})$`)

// FrameLogReader reads a log of framed words, one word per line.
type FrameLogReader struct {
	scanner *bufio.Scanner
	mask    uint32
	lineNo  int
}

// NewFrameLogReader generates a reader; the words are masked to dataBits.
func NewFrameLogReader(r io.Reader, dataBits int) *FrameLogReader {
	return &FrameLogReader{
		scanner: bufio.NewScanner(r),
		mask:    siouart.Config{DataBits: dataBits}.Mask(),
	}
}

// ReadFrame returns the next frame or io.EOF. Lines without a word are skipped.
// A frame log doesn't carry the frame times, Start and End are zero.
func (r *FrameLogReader) ReadFrame() (siouart.Frame, error) {
	for r.scanner.Scan() {
		r.lineNo++

		word, ok := ParseFrameLine(r.scanner.Text())
		if !ok {
			debug.TraceLog.Printf("skip line %d: %q", r.lineNo, r.scanner.Text())
			continue
		}

		return siouart.Frame{Word: word & r.mask}, nil
	}

	if err := r.scanner.Err(); err != nil {
		return siouart.Frame{}, err
	}
	return siouart.Frame{}, io.EOF
}

// ParseFrameLine extracts the word of a frame log line.
func ParseFrameLine(s string) (uint32, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	m := frameLine.FindStringSubmatch(s)
	if m == nil {
		m = hexLine.FindStringSubmatch(s)
	}
	if m == nil {
		return 0, false
	}

	v, err := strconv.ParseUint(m[1], 16, 64)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}
