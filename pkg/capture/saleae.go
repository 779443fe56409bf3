package capture

import (
	"fmt"
	"io"
	"time"

	"github.com/soypat/saleae"
	"github.com/womat/debug"
	"siodbg/pkg/line"
)

// ReadSaleaeDigital reads a Saleae Logic binary digital channel file (digital_N.bin).
// tail is the idle time which is appended after the last transition, it closes the last frame.
func ReadSaleaeDigital(r io.Reader, tail time.Duration) (*SampleSlice, error) {
	df, err := saleae.ReadDigitalFile(r)
	if err != nil {
		return nil, fmt.Errorf("read saleae digital file: %w", err)
	}

	debug.DebugLog.Printf("saleae digital file: %d transitions", len(df.Data))
	return NewSampleSlice(transitions(df.Header.InitialState != 0, df.Data, tail)), nil
}

// ReadSaleaeCapture reads the given digital channel of a Saleae Logic capture (.sal) file.
func ReadSaleaeCapture(name string, channel int, tail time.Duration) (*SampleSlice, error) {
	c, err := saleae.ReadCaptureFile(name)
	if err != nil {
		return nil, fmt.Errorf("read saleae capture %q: %w", name, err)
	}

	if channel < 0 || channel >= len(c.DigitalFiles) {
		return nil, fmt.Errorf("saleae capture %q has no digital channel %d (%d channels)", name, channel, len(c.DigitalFiles))
	}

	df := c.DigitalFiles[channel]
	debug.InfoLog.Printf("saleae capture started %v, channel %d: %d transitions",
		c.CaptureStart.Format(time.Stamp), channel, len(df.Data))
	return NewSampleSlice(transitions(df.Header.InitialState != 0, df.Data, tail)), nil
}

// transitions converts the transition times (seconds) of a channel to samples.
// The line toggles at every transition, starting with the initial state.
// The initial state is assumed to last tail before the first transition.
func transitions(initial bool, times []float64, tail time.Duration) []line.Sample {
	if len(times) == 0 {
		return nil
	}

	samples := make([]line.Sample, 0, len(times)+2)
	level := initial
	samples = append(samples, line.Sample{Timestamp: seconds(times[0]) - tail, Level: line.LevelOf(level)})

	for _, t := range times {
		level = !level
		samples = append(samples, line.Sample{Timestamp: seconds(t), Level: line.LevelOf(level)})
	}

	return append(samples, line.Sample{Timestamp: seconds(times[len(times)-1]) + tail, Level: line.LevelOf(level)})
}
