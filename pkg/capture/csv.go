package capture

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/womat/debug"
	"siodbg/pkg/line"
)

// TransitionReader reads a transition log, e.g. the CSV export of a logic analyzer:
//
//	Time [s],Channel 0
//	0.000000000,1
//	0.000012345,0
//
// Columns are separated by commas or white space. The first column is the time in seconds,
// channel selects the level column (0 is the first column after the time).
// Lines which don't start with a number (headers, comments) are skipped.
type TransitionReader struct {
	scanner *bufio.Scanner
	channel int
	lineNo  int
}

// NewTransitionReader generates a reader of the given channel column.
func NewTransitionReader(r io.Reader, channel int) *TransitionReader {
	return &TransitionReader{scanner: bufio.NewScanner(r), channel: channel}
}

// ReadSample returns the next sample or io.EOF.
func (r *TransitionReader) ReadSample() (line.Sample, error) {
	for r.scanner.Scan() {
		r.lineNo++

		fields := strings.FieldsFunc(r.scanner.Text(), func(c rune) bool {
			return c == ',' || c == ';' || c == ' ' || c == '\t'
		})
		if len(fields) == 0 {
			continue
		}

		t, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			debug.TraceLog.Printf("skip line %d: %q", r.lineNo, r.scanner.Text())
			continue
		}

		if len(fields) <= r.channel+1 {
			return line.Sample{}, fmt.Errorf("line %d: no column for channel %d", r.lineNo, r.channel)
		}

		var level line.Level
		switch fields[r.channel+1] {
		case "0", "L", "l", "low":
			level = line.Low
		case "1", "H", "h", "high":
			level = line.High
		default:
			return line.Sample{}, fmt.Errorf("line %d: invalid level %q", r.lineNo, fields[r.channel+1])
		}

		return line.Sample{Timestamp: seconds(t), Level: level}, nil
	}

	if err := r.scanner.Err(); err != nil {
		return line.Sample{}, err
	}
	return line.Sample{}, io.EOF
}

// seconds converts a time in seconds to a duration, rounded to whole nanoseconds.
func seconds(t float64) time.Duration {
	return time.Duration(math.Round(t * float64(time.Second)))
}
