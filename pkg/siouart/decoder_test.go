package siouart

import (
	"errors"
	"testing"
	"time"

	"siodbg/pkg/line"
)

type result struct {
	frames []Frame
	errs   []error
}

func decode(t *testing.T, c Config, cells []line.Level) result {
	t.Helper()

	var r result
	d, err := NewDecoder(c,
		func(f Frame) { r.frames = append(r.frames, f) },
		func(err error) { r.errs = append(r.errs, err) })
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}

	for i, level := range cells {
		d.Push(line.Bit{Timestamp: at(i), Level: level})
	}
	return r
}

// at returns the timestamp of cell i at 1 ns per cell.
func at(i int) time.Duration { return time.Duration(i) }

func idleCells(n int) []line.Level {
	cells := make([]line.Level, n)
	for i := range cells {
		cells[i] = line.High
	}
	return cells
}

func stream(c Config, words ...uint32) []line.Level {
	cells := idleCells(2)
	for _, w := range words {
		cells = append(cells, c.Encode(w)...)
	}
	return cells
}

func words(frames []Frame) []uint32 {
	w := make([]uint32, len(frames))
	for i, f := range frames {
		w[i] = f.Word
	}
	return w
}

func equalWords(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "default", config: DefaultConfig()},
		{name: "two stop bits", config: Config{DataBits: 26, StopBits: 2}},
		{name: "32 data bits", config: Config{DataBits: 32, StopBits: 1}},
		{name: "no data bits", config: Config{DataBits: 0, StopBits: 1}, wantErr: true},
		{name: "33 data bits", config: Config{DataBits: 33, StopBits: 1}, wantErr: true},
		{name: "no stop bit", config: Config{DataBits: 26, StopBits: 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfigMask(t *testing.T) {
	if got := DefaultConfig().Mask(); got != 0x3FFFFFF {
		t.Errorf("Mask() = 0x%X, want 0x3FFFFFF", got)
	}
	if got := (Config{DataBits: 32, StopBits: 1}).Mask(); got != 0xFFFFFFFF {
		t.Errorf("Mask() = 0x%X, want 0xFFFFFFFF", got)
	}
	if got := DefaultConfig().FrameBits(); got != 28 {
		t.Errorf("FrameBits() = %d, want 28", got)
	}
}

func TestEncode(t *testing.T) {
	cells := Config{DataBits: 4, StopBits: 2}.Encode(0b0101)
	want := []line.Level{line.Low, line.High, line.Low, line.High, line.Low, line.High, line.High}
	if len(cells) != len(want) {
		t.Fatalf("Encode() = %v, want %v", cells, want)
	}
	for i := range want {
		if cells[i] != want[i] {
			t.Fatalf("Encode() = %v, want %v", cells, want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	c := DefaultConfig()
	values := []uint32{0x0000000, 0x3FFFFFF, 0x2A55580, 0x1555555, 0x2AAAAAA, 0x0000001, 0x2000000, 0x2C00083}

	r := decode(t, c, stream(c, values...))
	if len(r.errs) != 0 {
		t.Fatalf("errors = %v", r.errs)
	}
	if !equalWords(words(r.frames), values) {
		t.Errorf("frames = %07X, want %07X", words(r.frames), values)
	}
}

func TestRoundTripAllBits(t *testing.T) {
	c := DefaultConfig()
	for bit := 0; bit < c.DataBits; bit++ {
		for _, v := range []uint32{1 << uint(bit), c.Mask() &^ (1 << uint(bit))} {
			r := decode(t, c, stream(c, v))
			if len(r.frames) != 1 || r.frames[0].Word != v {
				t.Errorf("word 0x%07X: frames = %v, errors = %v", v, r.frames, r.errs)
			}
		}
	}
}

func TestFrameTiming(t *testing.T) {
	c := DefaultConfig()
	r := decode(t, c, stream(c, 0x123))
	if len(r.frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(r.frames))
	}

	f := r.frames[0]
	if f.Start != 2 || f.End != at(2+c.FrameBits()-1) {
		t.Errorf("frame start = %v, end = %v", f.Start, f.End)
	}
	if f.String() != "0000123" {
		t.Errorf("String() = %q", f.String())
	}
}

func TestExtraStopBits(t *testing.T) {
	c := DefaultConfig()
	cells := idleCells(3)
	cells = append(cells, c.Encode(0x80)...)
	cells = append(cells, idleCells(5)...)
	cells = append(cells, c.Encode(0x2000083)...)

	r := decode(t, c, cells)
	if len(r.errs) != 0 {
		t.Fatalf("errors = %v", r.errs)
	}
	if !equalWords(words(r.frames), []uint32{0x80, 0x2000083}) {
		t.Errorf("frames = %07X", words(r.frames))
	}
}

func TestTwoStopBits(t *testing.T) {
	c := Config{DataBits: 26, StopBits: 2}
	cells := stream(c, 0x81)

	r := decode(t, c, cells[:len(cells)-1])
	if len(r.frames) != 0 {
		t.Fatalf("frame completed after one of two stop bits")
	}

	r = decode(t, c, cells)
	if !equalWords(words(r.frames), []uint32{0x81}) {
		t.Errorf("frames = %07X", words(r.frames))
	}
}

func TestFramingRecovery(t *testing.T) {
	c := DefaultConfig()
	bad := c.Encode(0x1234)
	bad[len(bad)-1] = line.Low

	cells := stream(c, 0x80)
	cells = append(cells, bad...)
	cells = append(cells, idleCells(1)...)
	cells = append(cells, c.Encode(0x81)...)
	cells = append(cells, c.Encode(0x83)...)

	r := decode(t, c, cells)
	if len(r.errs) != 1 {
		t.Fatalf("errors = %v, want one framing error", r.errs)
	}

	var framing *FramingError
	if !errors.As(r.errs[0], &framing) {
		t.Fatalf("error = %v, want *FramingError", r.errs[0])
	}
	if framing.Word != 0x1234 {
		t.Errorf("FramingError.Word = 0x%X, want 0x1234", framing.Word)
	}

	if !equalWords(words(r.frames), []uint32{0x80, 0x81, 0x83}) {
		t.Errorf("frames = %07X", words(r.frames))
	}
}

func TestFramingRecoveryBackToBack(t *testing.T) {
	c := DefaultConfig()
	bad := c.Encode(0x1234)
	bad[len(bad)-1] = line.Low

	// no idle cells between the frames, the start bit follows the rejected stop bit
	cells := stream(c, 0x2A40080)
	cells = append(cells, bad...)
	for _, w := range []uint32{0x82, 0x2C00083, 0x500080, 0x2C00083, 0x2C00083} {
		cells = append(cells, c.Encode(w)...)
	}

	r := decode(t, c, cells)
	if len(r.errs) != 1 {
		t.Fatalf("errors = %v, want one framing error", r.errs)
	}

	var framing *FramingError
	if !errors.As(r.errs[0], &framing) {
		t.Fatalf("error = %v, want *FramingError", r.errs[0])
	}

	want := []uint32{0x2A40080, 0x82, 0x2C00083, 0x500080, 0x2C00083, 0x2C00083}
	if !equalWords(words(r.frames), want) {
		t.Errorf("frames = %07X, want %07X", words(r.frames), want)
	}
}

func TestArming(t *testing.T) {
	c := DefaultConfig()

	// a capture starting in the middle of a frame doesn't produce a frame
	cells := []line.Level{line.Low, line.Low}
	cells = append(cells, stream(c, 0x82)...)

	r := decode(t, c, cells)
	if len(r.errs) != 0 {
		t.Fatalf("errors = %v", r.errs)
	}
	if !equalWords(words(r.frames), []uint32{0x82}) {
		t.Errorf("frames = %07X, want [0000082]", words(r.frames))
	}
}

func TestSyncLoss(t *testing.T) {
	c := DefaultConfig()
	frame := c.Encode(0x3FFFF80)
	cells := idleCells(2)
	cells = append(cells, frame[:10]...)
	cells = append(cells, line.Invalid)
	cells = append(cells, idleCells(2)...)
	cells = append(cells, c.Encode(0x80)...)

	r := decode(t, c, cells)
	if len(r.errs) != 1 {
		t.Fatalf("errors = %v, want one sync loss", r.errs)
	}

	var syncLoss *SyncLossError
	if !errors.As(r.errs[0], &syncLoss) {
		t.Fatalf("error = %v, want *SyncLossError", r.errs[0])
	}
	if syncLoss.Bits != 9 {
		t.Errorf("SyncLossError.Bits = %d, want 9", syncLoss.Bits)
	}
	if !equalWords(words(r.frames), []uint32{0x80}) {
		t.Errorf("frames = %07X", words(r.frames))
	}
}

func TestPreambleNoise(t *testing.T) {
	c := DefaultConfig()
	cells := []line.Level{line.Invalid, line.High, line.Invalid, line.Invalid}
	cells = append(cells, stream(c, 0x83)...)

	r := decode(t, c, cells)
	if len(r.errs) != 3 {
		t.Fatalf("errors = %v, want 3", r.errs)
	}
	for _, err := range r.errs {
		var noise *PreambleNoiseError
		if !errors.As(err, &noise) {
			t.Errorf("error = %v, want *PreambleNoiseError", err)
		}
	}
	if !equalWords(words(r.frames), []uint32{0x83}) {
		t.Errorf("frames = %07X", words(r.frames))
	}
}

func TestIdle(t *testing.T) {
	c := DefaultConfig()
	d, err := NewDecoder(c, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !d.Idle() {
		t.Fatal("new decoder isn't idle")
	}

	cells := stream(c, 0x80)
	for i, level := range cells[:len(cells)-1] {
		d.Push(line.Bit{Timestamp: at(i), Level: level})
	}
	if d.Idle() {
		t.Fatal("decoder is idle before the stop bit")
	}

	d.Push(line.Bit{Timestamp: at(len(cells)), Level: line.High})
	if !d.Idle() {
		t.Fatal("decoder isn't idle after the stop bit")
	}
}
