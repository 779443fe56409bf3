package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRange is returned by ParseArrange for a malformed bit range.
var ErrInvalidRange = errors.New("invalid bit range")

// BitRange is an inclusive range of bits, Start is the most significant bit.
type BitRange struct {
	Start int
	End   int
}

// Width returns the count of bits of the range.
func (r BitRange) Width() int {
	return r.Start - r.End + 1
}

// ParseArrange parses a comma separated list of bit ranges, e.g. "25-18,17-16,15-8,7-0".
// A single number selects one bit, a range given low-high is swapped.
func ParseArrange(s string) ([]BitRange, error) {
	var ranges []BitRange

	for _, part := range strings.Split(s, ",") {
		bits := strings.Split(strings.TrimSpace(part), "-")
		if len(bits) > 2 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRange, part)
		}

		start, err := strconv.Atoi(strings.TrimSpace(bits[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRange, part)
		}
		end := start
		if len(bits) == 2 {
			if end, err = strconv.Atoi(strings.TrimSpace(bits[1])); err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidRange, part)
			}
		}

		if start < end {
			start, end = end, start
		}
		if end < 0 || start > 31 {
			return nil, fmt.Errorf("%w: %q exceeds bits 31-0", ErrInvalidRange, part)
		}

		ranges = append(ranges, BitRange{Start: start, End: end})
	}

	return ranges, nil
}

// ReverseBits reverses the order of the lower width bits of v.
func ReverseBits(v uint32, width int) uint32 {
	var r uint32
	for i := 0; i < width; i++ {
		r = r<<1 | v>>uint(i)&1
	}
	return r
}

// FormatPart formats the bits of a range as hex (one digit per started nibble) or binary.
func FormatPart(v uint32, r BitRange, binary bool) string {
	bits := r.Width()
	x := v >> uint(r.End) & uint32(1<<uint(bits)-1)

	if binary {
		return fmt.Sprintf("%0*b", bits, x)
	}
	return fmt.Sprintf("%0*X", (bits+3)/4, x)
}

// Format formats all ranges of v separated by spaces.
func Format(v uint32, ranges []BitRange, binary bool) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = FormatPart(v, r, binary)
	}
	return strings.Join(parts, " ")
}
