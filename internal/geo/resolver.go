// Package geo locates and normalizes latitude/longitude fields in imported rows.
package geo

import (
	"math"
	"sort"
	"strings"

	"salesops/internal/keys"
)

// Axis identifies latitude or longitude.
type Axis int

const (
	Lat Axis = iota
	Lng
)

// Limit returns the absolute bound of the axis.
func (a Axis) Limit() float64 {
	if a == Lat {
		return 90
	}
	return 180
}

// InRange reports whether v is a finite value within the axis bound.
func (a Axis) InRange(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= a.Limit()
}

// Mode selects whether configured field names are tried first.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

// Options are the per-dataset resolve settings.
type Options struct {
	Mode     Mode
	LatField string
	LngField string
}

// Coordinates is a resolved pair and the columns it was read from.
// LngKey equals LatKey when both came from one combined column.
type Coordinates struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	LatKey string  `json:"latKey,omitempty"`
	LngKey string  `json:"lngKey,omitempty"`
}

func none() Coordinates { return Coordinates{Lat: math.NaN(), Lng: math.NaN()} }

// Resolver is safe for concurrent use; it holds only immutable configuration.
type Resolver struct {
	cfg Config
}

// NewResolver builds a Resolver; zero fields of cfg take their defaults.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (r *Resolver) Config() Config { return r.cfg }

// WithReference returns a copy of r biased towards another reference point.
// The plausible bands move with the reference and keep their width.
func (r *Resolver) WithReference(lat, lng float64) *Resolver {
	cfg := r.cfg
	dLat, dLng := lat-cfg.RefLat, lng-cfg.RefLng
	cfg.LatBand = [2]float64{cfg.LatBand[0] + dLat, cfg.LatBand[1] + dLat}
	cfg.LngBand = [2]float64{cfg.LngBand[0] + dLng, cfg.LngBand[1] + dLng}
	cfg.RefLat, cfg.RefLng = lat, lng
	return &Resolver{cfg: cfg}
}

// NormalizeScaled maps v into the valid range of axis. Values already in range
// are returned unchanged; larger ones are treated as coordinates with the
// decimal point stripped and divided by the power of ten whose quotient is
// closest to the reference point. Returns NaN when nothing fits.
func (r *Resolver) NormalizeScaled(v float64, axis Axis) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.NaN()
	}
	if axis.InRange(v) {
		return v
	}
	ref, band := r.cfg.RefLat, r.cfg.LatBand
	if axis == Lng {
		ref, band = r.cfg.RefLng, r.cfg.LngBand
	}
	best, bestScore := math.NaN(), math.Inf(1)
	for k := 0; k <= r.cfg.MaxScaleExp; k++ {
		q := v / math.Pow(10, float64(k))
		if !axis.InRange(q) {
			continue
		}
		score := math.Abs(q - ref)
		if math.Abs(q) < 1 {
			score += r.cfg.SmallPenalty
		}
		if q < band[0] || q > band[1] {
			score += r.cfg.BandPenalty
		}
		if score < bestScore {
			best, bestScore = q, score
		}
	}
	return best
}

// Resolve finds a valid coordinate pair in row. It never fails loudly: when
// nothing validates it returns NaN coordinates and false.
func (r *Resolver) Resolve(row map[string]any, opts Options) (Coordinates, bool) {
	if len(row) == 0 {
		return none(), false
	}
	cols := keys.SortedKeys(row)
	latVals := make(map[string]float64, len(cols))
	lngVals := make(map[string]float64, len(cols))
	for _, k := range cols {
		p := ParseRawNumber(row[k])
		latVals[k] = r.NormalizeScaled(p, Lat)
		lngVals[k] = r.NormalizeScaled(p, Lng)
	}

	latCands := r.candidates(cols, r.cfg.LatPatterns)
	lngCands := r.candidates(cols, r.cfg.LngPatterns)
	if opts.Mode == ModeManual {
		if k := lookupColumn(cols, opts.LatField); k != "" {
			latCands = prepend(latCands, k)
		}
		if k := lookupColumn(cols, opts.LngField); k != "" {
			lngCands = prepend(lngCands, k)
		}
	}

	if c, ok := pairSearch(latCands, lngCands, latVals, lngVals, false); ok {
		return c, true
	}
	// any two columns
	if c, ok := pairSearch(cols, cols, latVals, lngVals, true); ok {
		return c, true
	}
	// one column holding both numbers; these carry decimal points, so no descaling
	for _, k := range cols {
		s, ok := row[k].(string)
		if !ok {
			continue
		}
		a, b, ok := splitPair(s)
		if !ok {
			continue
		}
		for _, p := range [][2]float64{{a, b}, {b, a}} {
			lat, lng := p[0], p[1]
			if Lat.InRange(lat) && Lng.InRange(lng) && !(lat == 0 && lng == 0) {
				return Coordinates{Lat: lat, Lng: lng, LatKey: k, LngKey: k}, true
			}
		}
	}
	return none(), false
}

func pairSearch(latKeys, lngKeys []string, latVals, lngVals map[string]float64, rejectOrigin bool) (Coordinates, bool) {
	for _, lk := range latKeys {
		lat := latVals[lk]
		if !Lat.InRange(lat) {
			continue
		}
		for _, gk := range lngKeys {
			if gk == lk {
				continue
			}
			lng := lngVals[gk]
			if !Lng.InRange(lng) {
				continue
			}
			if rejectOrigin && lat == 0 && lng == 0 {
				continue
			}
			return Coordinates{Lat: lat, Lng: lng, LatKey: lk, LngKey: gk}, true
		}
	}
	return Coordinates{}, false
}

type scored struct {
	key   string
	score int
}

// candidates returns the columns matching any pattern, best score first.
func (r *Resolver) candidates(cols []string, patterns []Pattern) []string {
	var hits []scored
	for _, c := range cols {
		if s := Score(c, patterns); s > 0 {
			hits = append(hits, scored{key: c, score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.key
	}
	return out
}

// Score returns the highest pattern weight matching the column name, or 0.
func Score(column string, patterns []Pattern) int {
	name := strings.ToLower(strings.TrimSpace(column))
	best := 0
	for _, p := range patterns {
		if p.Weight > best && p.matches(name) {
			best = p.Weight
		}
	}
	return best
}

// lookupColumn finds field among cols, exactly or case-insensitively.
func lookupColumn(cols []string, field string) string {
	field = strings.TrimSpace(field)
	if field == "" {
		return ""
	}
	for _, c := range cols {
		if c == field {
			return c
		}
	}
	for _, c := range cols {
		if strings.EqualFold(strings.TrimSpace(c), field) {
			return c
		}
	}
	return ""
}

func prepend(list []string, k string) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, k)
	for _, v := range list {
		if v != k {
			out = append(out, v)
		}
	}
	return out
}
