package rcp

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Value is a raw cur.val payload. The camera sends numbers for most parameters and strings
// for names and LUT selections, so decoding is deferred to the typed accessors.
type Value struct {
	raw json.RawMessage
}

// NumberValue builds a numeric Value, mostly for tests and synthetic frames.
func NumberValue(v float64) Value {
	return Value{raw: json.RawMessage(strconv.FormatFloat(v, 'f', -1, 64))}
}

// TextValue builds a string Value.
func TextValue(s string) Value {
	raw, _ := json.Marshal(s)

	return Value{raw: raw}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	v.raw = append(v.raw[:0], data...)

	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Present() {
		return []byte("null"), nil
	}

	return v.raw, nil
}

// Present reports whether a non-null value was sent.
func (v Value) Present() bool {
	trimmed := bytes.TrimSpace(v.raw)

	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Number returns the value when it was sent as a JSON number.
func (v Value) Number() (float64, bool) {
	if !v.Present() {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(v.raw, &n); err != nil {
		return 0, false
	}

	return n, true
}

// Integer returns the value when it is a JSON number without a fractional part.
func (v Value) Integer() (int64, bool) {
	n, ok := v.Number()
	if !ok || n != math.Trunc(n) || math.IsInf(n, 0) {
		return 0, false
	}

	return int64(n), true
}

// Text returns the value when it was sent as a JSON string.
func (v Value) Text() (string, bool) {
	if !v.Present() {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v.raw, &s); err != nil {
		return "", false
	}

	return s, true
}

// String renders the value the way the camera UI would print it: numbers in shortest
// decimal form, strings verbatim, anything else as raw JSON.
func (v Value) String() string {
	if !v.Present() {
		return ""
	}
	if n, ok := v.Number(); ok {
		return FormatNumber(n)
	}
	if s, ok := v.Text(); ok {
		return s
	}
	if b, ok := v.boolean(); ok {
		return strconv.FormatBool(b)
	}

	return string(bytes.TrimSpace(v.raw))
}

// Truthy follows the loose truthiness the camera firmware relies on: non-zero numbers,
// non-empty strings and true.
func (v Value) Truthy() bool {
	if n, ok := v.Number(); ok {
		return n != 0 && !math.IsNaN(n)
	}
	if s, ok := v.Text(); ok {
		return s != ""
	}
	if b, ok := v.boolean(); ok {
		return b
	}

	return v.Present()
}

func (v Value) boolean() (bool, bool) {
	if !v.Present() {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(v.raw, &b); err != nil {
		return false, false
	}

	return b, true
}

// FormatNumber prints a number in its shortest round-tripping decimal form.
func FormatNumber(n float64) string {
	if n == 0 {
		return "0"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e21 {
		return strconv.FormatFloat(n, 'f', 0, 64)
	}

	return strconv.FormatFloat(n, 'f', -1, 64)
}
