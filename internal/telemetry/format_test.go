package telemetry

import (
	"math"
	"testing"
)

func TestFormatFixed(t *testing.T) {
	tests := []struct {
		value  float64
		digits int
		want   string
	}{
		{value: 12.5, digits: 1, want: "12.5"},
		{value: 2.5, digits: 0, want: "3"},
		{value: -2.5, digits: 0, want: "-3"},
		{value: 1.005, digits: 2, want: "1.00"},
		{value: 0.125, digits: 2, want: "0.13"},
		{value: -1.5, digits: 3, want: "-1.500"},
		{value: 0, digits: 3, want: "0.000"},
		{value: 0.05, digits: 1, want: "0.1"},
		{value: 48, digits: 2, want: "48.00"},
		{value: 7.3333333, digits: 1, want: "7.3"},
	}

	for _, tc := range tests {
		if got := formatFixed(tc.value, tc.digits); got != tc.want {
			t.Fatalf("formatFixed(%v, %d): expected %q, got %q", tc.value, tc.digits, tc.want, got)
		}
	}
}

func TestMinutesToClock(t *testing.T) {
	tests := []struct {
		minutes float64
		want    string
	}{
		{minutes: 90, want: "01:30:00"},
		{minutes: 0, want: "00:00:00"},
		{minutes: 1.5, want: "00:01:30"},
		{minutes: 6000, want: "100:00:00"},
		{minutes: -3, want: "00:00:00"},
		{minutes: math.NaN(), want: "00:00:00"},
	}

	for _, tc := range tests {
		if got := minutesToClock(tc.minutes); got != tc.want {
			t.Fatalf("minutesToClock(%v): expected %q, got %q", tc.minutes, tc.want, got)
		}
	}
}

func TestParseLeadingNumbers(t *testing.T) {
	if n, ok := ParseLeadingInt(" 45 min"); !ok || n != 45 {
		t.Fatalf("expected 45, got %d (ok=%v)", n, ok)
	}
	if _, ok := ParseLeadingInt("min"); ok {
		t.Fatalf("expected no integer prefix")
	}
	if v, ok := ParseLeadingFloat("5.6 T"); !ok || v != 5.6 {
		t.Fatalf("expected 5.6, got %v (ok=%v)", v, ok)
	}
	if _, ok := ParseLeadingFloat("T 5.6"); ok {
		t.Fatalf("expected no float prefix")
	}
	if v, ok := parseTStop("T 2 1/3"); !ok || formatFixed(v, 1) != "2.3" {
		t.Fatalf("expected T-stop 2.3, got %v (ok=%v)", v, ok)
	}
}

func TestFixedPoint(t *testing.T) {
	tests := map[float64]int64{
		1.5:    1500,
		-1.5:   -1500,
		0.0005: 1,
		-8:     -8000,
		0.333:  333,
	}
	for value, want := range tests {
		if got := FixedPoint(value); got != want {
			t.Fatalf("FixedPoint(%v): expected %d, got %d", value, want, got)
		}
	}
}
