package geo

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestParseRawNumber(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{"50,1109", 50.1109},
		{"8.6821", 8.6821},
		{"51.123.251,8", 51123251.8},
		{" 50.11 ", 50.11},
		{"50.11°", 50.11},
		{"50.11° N", 50.11},
		{"33.9 S", -33.9},
		{"W 3.7", -3.7},
		{"s12,5", -12.5},
		{"1 234,5", 1234.5},
		{"50°6'40\"", 50 + 6.0/60 + 40.0/3600},
		{"-8.5", -8.5},
		{"approx. 12", 12},
		{float64(7.25), 7.25},
		{int64(511232518), 511232518},
		{42, 42},
	}
	for _, c := range cases {
		got := ParseRawNumber(c.in)
		if !almostEqual(got, c.want, 1e-9) {
			t.Errorf("ParseRawNumber(%#v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseRawNumberFailures(t *testing.T) {
	for _, in := range []any{nil, "", "   ", "n/a", "°", true, []string{"1"}} {
		if got := ParseRawNumber(in); !math.IsNaN(got) {
			t.Errorf("ParseRawNumber(%#v) = %v, want NaN", in, got)
		}
	}
}

func TestSplitPair(t *testing.T) {
	cases := []struct {
		in   string
		a, b float64
		ok   bool
	}{
		{"50.11,8.68", 50.11, 8.68, true},
		{"50.11, 8.68", 50.11, 8.68, true},
		{"50.11 8.68", 50.11, 8.68, true},
		{"50,11; 8,68", 50.11, 8.68, true},
		{"50,11", 0, 0, false},
		{"1.0,2.0,3.0", 0, 0, false},
		{"abc def", 0, 0, false},
	}
	for _, c := range cases {
		a, b, ok := splitPair(c.in)
		if ok != c.ok {
			t.Errorf("splitPair(%q) ok=%v want %v", c.in, ok, c.ok)
			continue
		}
		if ok && (!almostEqual(a, c.a, 1e-9) || !almostEqual(b, c.b, 1e-9)) {
			t.Errorf("splitPair(%q) = %v,%v want %v,%v", c.in, a, b, c.a, c.b)
		}
	}
}
