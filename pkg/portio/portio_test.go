package portio

import (
	"errors"
	"strings"
	"testing"
	"time"

	"siodbg/pkg/siouart"
)

func TestFields(t *testing.T) {
	tests := []struct {
		name        string
		word        uint32
		wantPort    uint8
		wantHigh    uint8
		wantUnknown uint8
		wantValue   uint8
	}{
		{name: "zero", word: 0x0000000},
		{name: "port 0x80 value 0x55", word: 0x55<<18 | 0x80, wantPort: 0x80, wantValue: 0x55},
		{name: "all ones", word: 0x3FFFFFF, wantPort: 0xFF, wantHigh: 0xFF, wantUnknown: 3, wantValue: 0xFF},
		{name: "high field only", word: 0x00A500, wantHigh: 0xA5},
		{name: "unknown bits only", word: 0x020000, wantUnknown: 2},
		{name: "upper bits are ignored", word: 0xFC000083, wantPort: 0x83},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, high, unknown, value := Fields(tt.word)
			if port != tt.wantPort || high != tt.wantHigh || unknown != tt.wantUnknown || value != tt.wantValue {
				t.Errorf("Fields(0x%07X) = (0x%02X, 0x%02X, %d, 0x%02X), want (0x%02X, 0x%02X, %d, 0x%02X)",
					tt.word, port, high, unknown, value, tt.wantPort, tt.wantHigh, tt.wantUnknown, tt.wantValue)
			}
		})
	}
}

func TestWordFields(t *testing.T) {
	for _, w := range []uint32{0x0000000, 0x3FFFFFF, 0x2C5A981, 0x1000083, 0x0030000} {
		if got := Word(Fields(w)); got != w {
			t.Errorf("Word(Fields(0x%07X)) = 0x%07X", w, got)
		}
	}
}

func TestSplit(t *testing.T) {
	s := DefaultSplitter()

	for port := 0x80; port <= 0x83; port++ {
		f := siouart.Frame{Word: Word(uint8(port), 0x12, 1, 0xA9), Start: time.Millisecond}

		ev, err := s.Split(f)
		if err != nil {
			t.Fatalf("Split(port 0x%02X) error = %v", port, err)
		}

		want := WriteEvent{Time: time.Millisecond, Port: uint8(port), Value: 0xA9, High: 0x12, Unknown: 1}
		if ev != want {
			t.Errorf("Split(port 0x%02X) = %+v, want %+v", port, ev, want)
		}
	}
}

func TestSplitInvalidPort(t *testing.T) {
	s := DefaultSplitter()

	for _, port := range []uint8{0x00, 0x7F, 0x84, 0xFF} {
		word := Word(port, 0, 0, 0x42)
		_, err := s.Split(siouart.Frame{Word: word})

		var invalid *InvalidPortAddressError
		if !errors.As(err, &invalid) {
			t.Fatalf("Split(port 0x%02X) error = %v, want *InvalidPortAddressError", port, err)
		}
		if invalid.Port != port || invalid.Word != word || invalid.MinPort != 0x80 || invalid.MaxPort != 0x83 {
			t.Errorf("InvalidPortAddressError = %+v", invalid)
		}
		if !strings.Contains(err.Error(), "invalid port address") {
			t.Errorf("Error() = %q", err.Error())
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	s := DefaultSplitter()
	f := siouart.Frame{Word: 0x2C5A981}

	first, err := s.Split(f)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		ev, err := s.Split(f)
		if err != nil || ev != first {
			t.Fatalf("Split() = %+v, %v, want %+v", ev, err, first)
		}
	}
}

func TestNewSplitter(t *testing.T) {
	if _, err := NewSplitter(0x84, 0x80); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewSplitter(0x84, 0x80) error = %v, want ErrInvalidConfig", err)
	}

	s, err := NewSplitter(0x80, 0x80)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = s.Split(siouart.Frame{Word: 0x81}); err == nil {
		t.Error("Split(port 0x81) accepted a port outside 0x80-0x80")
	}
}

func TestWriteEventString(t *testing.T) {
	ev := WriteEvent{Index: 3, Port: 0x83, Value: 0xB0, High: 0x01, Unknown: 2}
	if got, want := ev.String(), "#3 0x83 <- 0xB0 high=0x01 unknown=2"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
