package siouart

import (
	"time"

	"siodbg/pkg/line"
)

// Encode returns the bit cells of a frame transmitting word:
// the start bit, the data bits LSB first and the stop bits.
func (c Config) Encode(word uint32) []line.Level {
	cells := make([]line.Level, 0, c.FrameBits())
	cells = append(cells, line.Low)

	for i := 0; i < c.DataBits; i++ {
		cells = append(cells, line.LevelOf(word&(1<<uint(i)) != 0))
	}

	for i := 0; i < c.StopBits; i++ {
		cells = append(cells, line.High)
	}

	return cells
}

// Waveform returns the samples of a line transmitting words at the given bit period.
// Every frame is preceded by idle high bit cells and the transmission ends with idle cells.
// The samples are the edges of the line plus a final sample which marks the end of the capture.
func Waveform(c Config, period time.Duration, idle int, words ...uint32) []line.Sample {
	cells := make([]line.Level, 0, (len(words)+1)*(c.FrameBits()+idle))
	for i := 0; i < idle; i++ {
		cells = append(cells, line.High)
	}

	for _, w := range words {
		cells = append(cells, c.Encode(w)...)
		for i := 0; i < idle; i++ {
			cells = append(cells, line.High)
		}
	}

	return Edges(cells, period, 0)
}

// Edges converts bit cells to the samples of their edges starting at offset.
func Edges(cells []line.Level, period, offset time.Duration) []line.Sample {
	if len(cells) == 0 {
		return nil
	}

	samples := []line.Sample{{Timestamp: offset, Level: cells[0]}}
	for i := 1; i < len(cells); i++ {
		if cells[i] != cells[i-1] {
			samples = append(samples, line.Sample{Timestamp: offset + time.Duration(i)*period, Level: cells[i]})
		}
	}

	return append(samples, line.Sample{
		Timestamp: offset + time.Duration(len(cells))*period,
		Level:     cells[len(cells)-1],
	})
}
