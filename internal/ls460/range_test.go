package ls460

import "testing"

func TestParseRange(t *testing.T) {
	cases := []struct {
		in   string
		want Range
	}{
		{"HIGHEST", RangeHighest},
		{"high", RangeHigh},
		{" Low ", RangeLow},
		{"LOWEST", RangeLowest},
		{"auto", RangeAuto},
	}
	for _, tc := range cases {
		got, err := ParseRange(tc.in)
		if err != nil {
			t.Fatalf("ParseRange(%q) err = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseRange(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseRange("MEDIUM"); err == nil {
		t.Fatal("ParseRange(MEDIUM) should fail")
	}
}

func TestRangeCode(t *testing.T) {
	for r, want := range map[Range]int{
		RangeHighest: 0,
		RangeHigh:    1,
		RangeLow:     2,
		RangeLowest:  3,
	} {
		code, err := r.Code()
		if err != nil {
			t.Fatalf("%v.Code() err = %v", r, err)
		}
		if code != want {
			t.Fatalf("%v.Code() = %d, want %d", r, code, want)
		}
	}
	if _, err := RangeAuto.Code(); err == nil {
		t.Fatal("RangeAuto.Code() should fail; AUTO is written through the AUTO command")
	}
}

func TestRangeTextRoundTrip(t *testing.T) {
	for r := RangeHighest; r <= RangeAuto; r++ {
		text, err := r.MarshalText()
		if err != nil {
			t.Fatalf("%v.MarshalText() err = %v", r, err)
		}
		var back Range
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%s) err = %v", text, err)
		}
		if back != r {
			t.Fatalf("round trip %v -> %s -> %v", r, text, back)
		}
	}
}
