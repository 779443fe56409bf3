// Package session chains the decoding stages of a capture:
// samples -> bit cells -> frames -> write events -> POST codes.
//
// A session is strictly sequential, the POST code assembler depends on the wire order of the writes.
package session

import (
	"context"
	"errors"
	"io"

	"github.com/womat/debug"
	"siodbg/pkg/line"
	"siodbg/pkg/portio"
	"siodbg/pkg/postcode"
	"siodbg/pkg/sampler"
	"siodbg/pkg/siouart"
)

// Config holds the protocol parameters of all stages.
type Config struct {
	Sampler  sampler.Config
	Frame    siouart.Config
	MinPort  uint8
	MaxPort  uint8
	PostCode postcode.Config
}

// DefaultConfig returns the parameters of the SIO debug protocol.
func DefaultConfig() Config {
	return Config{
		Sampler:  sampler.DefaultConfig(),
		Frame:    siouart.DefaultConfig(),
		MinPort:  portio.DefaultMinPort,
		MaxPort:  portio.DefaultMaxPort,
		PostCode: postcode.DefaultConfig(),
	}
}

// SampleSource yields the samples of a capture. It returns io.EOF at the end of the capture.
type SampleSource interface {
	ReadSample() (line.Sample, error)
}

// FrameSource yields already framed words. It returns io.EOF at the end of the capture.
type FrameSource interface {
	ReadFrame() (siouart.Frame, error)
}

// Stats are the counters of a session.
type Stats struct {
	Frames        int `json:"frames"`
	Events        int `json:"events"`
	Codes         int `json:"codes"`
	FramingErrors int `json:"framingErrors"`
	SyncLosses    int `json:"syncLosses"`
	InvalidPorts  int `json:"invalidPorts"`
	PreambleNoise int `json:"preambleNoise"`
	NearMisses    int `json:"nearMisses"`
}

// Session decodes one capture.
type Session struct {
	config    Config
	sink      Sink
	sampler   *sampler.Sampler
	decoder   *siouart.Decoder
	splitter  portio.Splitter
	assembler *postcode.Assembler

	// events is the index of the next write event.
	events int
	stats  Stats
}

// New generates a session which sends its output to sink.
func New(config Config, sink Sink) (*Session, error) {
	var err error
	s := &Session{config: config, sink: sink}
	if s.sink == nil {
		s.sink = SinkFuncs{}
	}

	if s.splitter, err = portio.NewSplitter(config.MinPort, config.MaxPort); err != nil {
		return nil, err
	}
	if s.assembler, err = postcode.New(config.PostCode); err != nil {
		return nil, err
	}
	if s.decoder, err = siouart.NewDecoder(config.Frame, s.frame, s.report); err != nil {
		return nil, err
	}
	if s.sampler, err = sampler.New(config.Sampler, s.decoder.Push); err != nil {
		return nil, err
	}

	return s, nil
}

// PushSample adds the next sample of the line.
func (s *Session) PushSample(sample line.Sample) {
	s.sampler.Push(sample)
}

// PushFrame adds the next frame of a framed capture; the word is truncated to the data bits.
func (s *Session) PushFrame(f siouart.Frame) {
	f.Word &= s.config.Frame.Mask()
	s.frame(f)
}

// Flush ends the capture: the bit cells after the last edge are decoded.
func (s *Session) Flush() {
	s.sampler.Flush()
}

// Idle reports whether the session is between two frames.
func (s *Session) Idle() bool {
	return s.decoder.Idle()
}

// Reset starts a new capture, all shadow bytes are zero and the counters are cleared.
func (s *Session) Reset() {
	s.sampler.Reset()
	s.decoder.Reset()
	s.assembler.Reset()
	s.events = 0
	s.stats = Stats{}
}

// Stats returns the counters of the session.
func (s *Session) Stats() Stats {
	st := s.stats
	st.NearMisses = s.sampler.Stats().NearMisses
	return st
}

// RunSamples decodes all samples of src.
// The context is checked between frames only, a frame is never cut in half.
func (s *Session) RunSamples(ctx context.Context, src SampleSource) error {
	for {
		if s.decoder.Idle() {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		sample, err := src.ReadSample()
		if errors.Is(err, io.EOF) {
			s.Flush()
			return nil
		}
		if err != nil {
			return err
		}

		s.sampler.Push(sample)
	}
}

// RunFrames decodes all frames of src. The context is checked before every frame.
func (s *Session) RunFrames(ctx context.Context, src FrameSource) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		f, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		s.PushFrame(f)
	}
}

// frame handles a valid frame.
func (s *Session) frame(f siouart.Frame) {
	s.stats.Frames++
	debug.TraceLog.Printf("frame %v at %v", f, f.Start)
	if fs, ok := s.sink.(FrameSink); ok {
		fs.Frame(f)
	}

	ev, err := s.splitter.Split(f)
	if err != nil {
		s.report(err)
		return
	}

	ev.Index = s.events
	s.events++
	s.stats.Events++
	s.sink.Event(ev)

	if code, ok := s.assembler.Push(ev); ok {
		s.stats.Codes++
		s.sink.Code(code)
	}
}

// report counts an error and sends it to the sink. Preamble noise is counted only.
func (s *Session) report(err error) {
	var framing *siouart.FramingError
	var syncLoss *siouart.SyncLossError
	var noise *siouart.PreambleNoiseError
	var invalidPort *portio.InvalidPortAddressError

	switch {
	case errors.As(err, &noise):
		s.stats.PreambleNoise++
		return
	case errors.As(err, &framing):
		s.stats.FramingErrors++
	case errors.As(err, &syncLoss):
		s.stats.SyncLosses++
	case errors.As(err, &invalidPort):
		s.stats.InvalidPorts++
	}

	s.sink.Report(err)
}
