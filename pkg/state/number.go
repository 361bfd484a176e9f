package state

import (
	"math"
	"strconv"
	"strings"
)

// Coerce parses a stored string value as a number. Anything that does
// not parse becomes NaN, which then propagates through effects and
// comparisons per floating semantics. This matches the authored
// behavior: downstream logic may rely on NaN/Infinity flowing through
// state, so bad input is not trapped here.
func Coerce(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// FormatNumber renders a float back into the stored string form.
// NaN and infinities keep their readable spellings so they survive
// round-trips through snapshots and comparisons.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
