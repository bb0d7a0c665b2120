// Package keys normalizes scalar row values for key equality and display.
package keys

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var trailingZeroFraction = regexp.MustCompile(`^([-+]?\d+)\.0+$`)

// Normalize returns the join/lookup form of a scalar: trimmed, lowercased,
// with a trailing ".0" fraction collapsed so "123", "123.0" and 123 collide.
func Normalize(v any) string {
	s := strings.ToLower(strings.TrimSpace(String(v)))
	if m := trailingZeroFraction.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return s
}

// String renders a scalar for display. nil renders as "".
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// SortedKeys returns the column names of a row in lexical order.
func SortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Blank reports whether a value renders as an empty string.
func Blank(v any) bool { return strings.TrimSpace(String(v)) == "" }
