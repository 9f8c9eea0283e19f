package record

import (
	"math"
	"strconv"
	"strings"
)

// Coerce is a best-effort parser for coordinates that went through a text
// format and may carry trailing garbage (for example "0.51.3" or "0.25\r").
//
// The value is cut after its second "."-delimited segment and parsed as a
// float. A value without any "." is parsed whole. ok is false for anything
// that still fails to parse or is not finite; callers treat that as absent.
func Coerce(s string) (v float64, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if parts := strings.SplitN(s, ".", 3); len(parts) >= 2 {
		s = parts[0] + "." + parts[1]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
