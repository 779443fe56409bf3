// Package line holds the definition of the sampled debug line
package line

import "time"

// Level is the logical level of the line.
type Level int

const (
	// High indicates a logical 1 (idle and stop bits).
	High Level = 1
	// Low indicates a logical 0 (start bits).
	Low Level = 0
	// Invalid indicates a bit cell which could not be recovered, e.g. a pulse shorter than a bit period.
	Invalid Level = -1
)

func (l Level) String() string {
	switch l {
	case High:
		return "high"
	case Low:
		return "low"
	default:
		return "invalid"
	}
}

// LevelOf converts a boolean line state to a Level.
func LevelOf(b bool) Level {
	if b {
		return High
	}
	return Low
}

// Invert swaps High and Low. Invalid stays Invalid.
func (l Level) Invert() Level {
	switch l {
	case High:
		return Low
	case Low:
		return High
	default:
		return Invalid
	}
}

// Sample is one observation of the line.
//
// A sample doesn't need to be an edge: a sample with the same level as its
// predecessor only advances the time of the capture.
type Sample struct {
	// Timestamp is the monotonic time of the observation, relative to the capture start.
	Timestamp time.Duration
	// Level is the observed line level.
	Level Level
}

// Bit is one recovered bit cell.
type Bit struct {
	// Timestamp is the start of the bit cell.
	Timestamp time.Duration
	// Level is the sampled value of the bit cell.
	Level Level
}
