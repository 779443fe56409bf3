// Package capture reads captures of the SIO debug line.
//
// Sample captures (line transitions) come from a logic analyzer, either as a Saleae binary
// digital channel file or as a CSV export. Frame captures hold already framed 26-bit words,
// as written by the sigrok siodebuguart decoder or by a probe over a serial port.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"siodbg/pkg/line"
	"siodbg/pkg/siouart"
)

// Format is the format of a capture file.
type Format string

const (
	// Auto detects the format by file extension and content.
	Auto Format = "auto"
	// CSV is a transition log with one "time,level" row per line.
	CSV Format = "csv"
	// Saleae is a Saleae Logic binary digital channel file.
	Saleae Format = "saleae"
	// SaleaeCapture is a Saleae Logic capture (.sal) file.
	SaleaeCapture Format = "sal"
	// Frames is a log of framed words, e.g. "siodebuguart-1: 2A5B0C3".
	Frames Format = "frames"
)

// ErrUnknownFormat is returned for an unsupported capture format.
var ErrUnknownFormat = errors.New("unknown capture format")

// ParseFormat converts a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Auto, CSV, Saleae, SaleaeCapture, Frames:
		return f, nil
	case "":
		return Auto, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// IsFramed reports whether the format holds framed words instead of samples.
func (f Format) IsFramed() bool {
	return f == Frames
}

// DetectFormat guesses the format of a file from its name and its first bytes.
func DetectFormat(name string, head []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".sal":
		return SaleaeCapture
	case ".bin":
		return Saleae
	case ".csv":
		return CSV
	}

	switch {
	case bytes.HasPrefix(head, []byte("<SALEAE>")):
		return Saleae
	case bytes.Contains(head, []byte("siodebuguart-")):
		return Frames
	case bytes.ContainsAny(head, ",.") || bytes.Contains(head, []byte("Time")):
		return CSV
	default:
		return Frames
	}
}

// SampleSlice yields the samples of a slice.
type SampleSlice struct {
	samples []line.Sample
	pos     int
}

// NewSampleSlice generates a source of the given samples.
func NewSampleSlice(samples []line.Sample) *SampleSlice {
	return &SampleSlice{samples: samples}
}

// ReadSample returns the next sample or io.EOF.
func (s *SampleSlice) ReadSample() (line.Sample, error) {
	if s.pos >= len(s.samples) {
		return line.Sample{}, io.EOF
	}
	s.pos++
	return s.samples[s.pos-1], nil
}

// Len returns the count of samples.
func (s *SampleSlice) Len() int {
	return len(s.samples)
}

// FrameSlice yields the frames of a slice.
type FrameSlice struct {
	frames []siouart.Frame
	pos    int
}

// NewFrameSlice generates a source of the given frames.
func NewFrameSlice(frames []siouart.Frame) *FrameSlice {
	return &FrameSlice{frames: frames}
}

// ReadFrame returns the next frame or io.EOF.
func (s *FrameSlice) ReadFrame() (siouart.Frame, error) {
	if s.pos >= len(s.frames) {
		return siouart.Frame{}, io.EOF
	}
	s.pos++
	return s.frames[s.pos-1], nil
}
