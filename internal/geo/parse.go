package geo

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	numberToken = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
	// 50°6'40" style; separators already normalized to "."
	dmsPattern = regexp.MustCompile(`^([-+]?\d+(?:\.\d+)?)°(\d+(?:\.\d+)?)?['′]?(\d+(?:\.\d+)?)?["″]?$`)
)

// ParseRawNumber converts a raw cell value into a float. Strings may carry
// decimal commas, thousands dots, degree marks and hemisphere letters (S and W
// negate). Returns NaN when no number can be extracted.
func ParseRawNumber(v any) float64 {
	switch t := v.(type) {
	case nil:
		return math.NaN()
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		return parseString(t)
	default:
		return math.NaN()
	}
}

func parseString(raw string) float64 {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		if r == 'º' {
			return '°'
		}
		return r
	}, raw)

	neg := false
	for s != "" {
		if h, ok := hemisphere(s[0]); ok {
			neg = neg || h
			s = s[1:]
			continue
		}
		if h, ok := hemisphere(s[len(s)-1]); ok {
			neg = neg || h
			s = s[:len(s)-1]
			continue
		}
		break
	}
	if s == "" {
		return math.NaN()
	}

	hasDot, hasComma := strings.Contains(s, "."), strings.Contains(s, ",")
	switch {
	case hasDot && hasComma:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case hasComma:
		s = strings.ReplaceAll(s, ",", ".")
	}

	var f float64
	if m := dmsPattern.FindStringSubmatch(s); m != nil && m[2] != "" {
		deg, _ := strconv.ParseFloat(m[1], 64)
		min, _ := strconv.ParseFloat(m[2], 64)
		sec := 0.0
		if m[3] != "" {
			sec, _ = strconv.ParseFloat(m[3], 64)
		}
		f = math.Abs(deg) + min/60 + sec/3600
		if strings.HasPrefix(m[1], "-") {
			f = -f
		}
	} else {
		tok := numberToken.FindString(s)
		if tok == "" {
			return math.NaN()
		}
		var err error
		f, err = strconv.ParseFloat(tok, 64)
		if err != nil {
			return math.NaN()
		}
	}
	if neg {
		f = -math.Abs(f)
	}
	return f
}

// hemisphere reports whether b is a hemisphere letter and whether it negates.
func hemisphere(b byte) (negative bool, ok bool) {
	switch b {
	case 'N', 'n', 'E', 'e':
		return false, true
	case 'S', 's', 'W', 'w':
		return true, true
	}
	return false, false
}

var pairSplit = regexp.MustCompile(`\s*[;|]\s*|,\s+|\s+`)

// splitPair extracts two numbers from a single cell such as "50.11,8.68".
func splitPair(raw string) (float64, float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, 0, false
	}
	parts := pairSplit.Split(s, -1)
	if len(parts) != 2 {
		if strings.Count(s, ",") != 1 {
			return 0, 0, false
		}
		parts = strings.Split(s, ",")
		// "50,11" is one decimal-comma number, not a pair
		if !strings.Contains(parts[0], ".") || !strings.Contains(parts[1], ".") {
			return 0, 0, false
		}
	}
	a, b := ParseRawNumber(parts[0]), ParseRawNumber(parts[1])
	if math.IsNaN(a) || math.IsNaN(b) {
		return 0, 0, false
	}
	return a, b, true
}
