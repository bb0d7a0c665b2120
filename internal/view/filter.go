// Package view turns enriched rows into the table, map, group and card
// payloads served by the dashboard.
package view

import (
	"fmt"
	"math"
	"strings"

	"salesops/internal/geo"
	"salesops/internal/keys"
	"salesops/internal/model"
)

// Filter operators.
const (
	OpEq       = "eq"
	OpNeq      = "neq"
	OpContains = "contains"
	OpPrefix   = "prefix"
	OpIn       = "in"
	OpEmpty    = "empty"
	OpNotEmpty = "not_empty"
	OpGt       = "gt"
	OpLt       = "lt"
)

var knownOps = map[string]bool{
	OpEq: true, OpNeq: true, OpContains: true, OpPrefix: true, OpIn: true,
	OpEmpty: true, OpNotEmpty: true, OpGt: true, OpLt: true,
}

// ValidOp reports whether op is a supported filter operator.
func ValidOp(op string) bool { return knownOps[op] }

// ParseFilter reads the query form field:op[:value].
func ParseFilter(s string) (model.FilterRule, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" {
		return model.FilterRule{}, fmt.Errorf("filter %q: want field:op[:value]", s)
	}
	f := model.FilterRule{Field: strings.TrimSpace(parts[0]), Op: strings.ToLower(strings.TrimSpace(parts[1]))}
	if len(parts) == 3 { f.Value = parts[2] }
	if !ValidOp(f.Op) { return model.FilterRule{}, fmt.Errorf("filter %q: unknown op %q", s, f.Op) }
	return f, nil
}

// Match evaluates one rule. Text comparisons use key normalization so
// "4711.0" equals "4711" and case is ignored. Unknown ops never match.
func Match(data map[string]any, f model.FilterRule) bool {
	v := data[f.Field]
	switch f.Op {
	case OpEmpty:
		return keys.Blank(v)
	case OpNotEmpty:
		return !keys.Blank(v)
	case OpEq:
		return keys.Normalize(v) == keys.Normalize(f.Value)
	case OpNeq:
		return keys.Normalize(v) != keys.Normalize(f.Value)
	case OpContains:
		return strings.Contains(keys.Normalize(v), keys.Normalize(f.Value))
	case OpPrefix:
		return strings.HasPrefix(keys.Normalize(v), keys.Normalize(f.Value))
	case OpIn:
		have := keys.Normalize(v)
		for _, want := range strings.Split(f.Value, ",") {
			if keys.Normalize(want) == have { return true }
		}
		return false
	case OpGt, OpLt:
		a, b := geo.ParseRawNumber(v), geo.ParseRawNumber(f.Value)
		if math.IsNaN(a) || math.IsNaN(b) { return false }
		if f.Op == OpGt { return a > b }
		return a < b
	}
	return false
}

// Filter keeps rows matching every rule. The returned slice shares row values.
func Filter(rows []model.Row, rules []model.FilterRule) []model.Row {
	if len(rules) == 0 { return rows }
	out := make([]model.Row, 0, len(rows))
	for _, r := range rows {
		ok := true
		for _, f := range rules {
			if !Match(r.Data, f) {
				ok = false
				break
			}
		}
		if ok { out = append(out, r) }
	}
	return out
}
