package telemetry

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

var (
	leadingIntPattern   = regexp.MustCompile(`^[+-]?\d+`)
	leadingFloatPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	kelvinSuffix        = regexp.MustCompile(`\s*[Kk]?$`)
	hertzSuffix         = regexp.MustCompile(`(?i)\s*Hz$`)
	fpsSuffix           = regexp.MustCompile(`(?i)\s*FPS$`)
	cubeSuffix          = regexp.MustCompile(`(?i)\.cube$`)
	tStopPattern        = regexp.MustCompile(`^T\s+(\d+)\s+(\d+)/(\d+)`)
)

// formatFixed renders v with exactly digits decimals. Exact ties round away from zero,
// matching how the camera's own UI rounds, unlike strconv's round-half-even.
func formatFixed(v float64, digits int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	if digits < 0 {
		digits = 0
	}
	if digits > 20 {
		digits = 20
	}

	x := new(big.Float).SetPrec(2048).SetFloat64(math.Abs(v))
	scale := new(big.Float).SetPrec(2048).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil))
	x.Mul(x, scale)

	whole, _ := x.Int(nil)
	frac := new(big.Float).SetPrec(2048).Sub(x, new(big.Float).SetPrec(2048).SetInt(whole))
	if frac.Cmp(big.NewFloat(0.5)) >= 0 {
		whole.Add(whole, big.NewInt(1))
	}

	text := whole.String()
	if digits > 0 {
		if len(text) <= digits {
			text = strings.Repeat("0", digits-len(text)+1) + text
		}
		text = text[:len(text)-digits] + "." + text[len(text)-digits:]
	}
	if v < 0 {
		text = "-" + text
	}

	return text
}

// minutesToClock renders a minute count as HH:MM:SS; invalid input shows zero.
func minutesToClock(minutes float64) string {
	if math.IsNaN(minutes) || minutes < 0 {
		return "00:00:00"
	}
	total := int64(math.Floor(minutes * 60))
	hours := total / 3600
	mins := (total % 3600) / 60
	secs := total % 60

	return fmt.Sprintf("%02d:%02d:%02d", hours, mins, secs)
}

// ParseLeadingInt reads a base-10 integer prefix, ignoring leading whitespace and any
// trailing text ("90 min" -> 90).
func ParseLeadingInt(s string) (int64, bool) {
	match := leadingIntPattern.FindString(strings.TrimLeft(s, " \t\r\n"))
	if match == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		return 0, false
	}

	return n, true
}

// ParseLeadingFloat reads a decimal prefix ("5.6 T" -> 5.6).
func ParseLeadingFloat(s string) (float64, bool) {
	match := leadingFloatPattern.FindString(strings.TrimLeft(s, " \t\r\n"))
	if match == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}

	return n, true
}

// parseTStop reads the "T <whole> <num>/<den>" form used for iris readouts.
func parseTStop(s string) (float64, bool) {
	m := tStopPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	whole, err1 := strconv.ParseInt(m[1], 10, 64)
	num, err2 := strconv.ParseInt(m[2], 10, 64)
	den, err3 := strconv.ParseInt(m[3], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil || den == 0 {
		return 0, false
	}

	return float64(whole) + float64(num)/float64(den), true
}

func stripCube(name string) string {
	return cubeSuffix.ReplaceAllString(name, "")
}

func onOff(enabled bool) string {
	if enabled {
		return "On"
	}

	return "Off"
}

// jsRound rounds half up toward positive infinity, the rounding the camera expects for
// fixed-point values.
func jsRound(v float64) float64 {
	return math.Floor(v + 0.5)
}

// FixedPoint converts a decimal to the camera's thousandths encoding.
func FixedPoint(v float64) int64 {
	return int64(jsRound(v * 1000))
}
