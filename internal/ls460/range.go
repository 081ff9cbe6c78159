package ls460

import (
	"fmt"
	"strings"
)

// Range is the measurement range setting, applied uniformly across all three
// probe channels. The numeric codes 0..3 are the instrument's own encoding,
// largest range first.
type Range int

const (
	RangeHighest Range = iota
	RangeHigh
	RangeLow
	RangeLowest
	RangeAuto
)

var rangeNames = [...]string{
	RangeHighest: "HIGHEST",
	RangeHigh:    "HIGH",
	RangeLow:     "LOW",
	RangeLowest:  "LOWEST",
	RangeAuto:    "AUTO",
}

func (r Range) String() string {
	if r < RangeHighest || r > RangeAuto {
		return fmt.Sprintf("Range(%d)", int(r))
	}
	return rangeNames[r]
}

// Code returns the instrument range code. RangeAuto has no code; it is
// written through the AUTO command instead.
func (r Range) Code() (int, error) {
	if r < RangeHighest || r > RangeLowest {
		return 0, fmt.Errorf("range %s has no numeric code", r)
	}
	return int(r), nil
}

func RangeFromCode(code int) (Range, error) {
	if code < 0 || code > int(RangeLowest) {
		return 0, fmt.Errorf("unknown range code %d", code)
	}
	return Range(code), nil
}

func ParseRange(s string) (Range, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for r, n := range rangeNames {
		if n == name {
			return Range(r), nil
		}
	}
	return 0, fmt.Errorf("unknown range %q", s)
}

func (r Range) MarshalText() ([]byte, error) {
	if r < RangeHighest || r > RangeAuto {
		return nil, fmt.Errorf("invalid range value %d", int(r))
	}
	return []byte(rangeNames[r]), nil
}

func (r *Range) UnmarshalText(text []byte) error {
	parsed, err := ParseRange(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
