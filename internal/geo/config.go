package geo

import "strings"

// MatchKind selects how a Pattern token is compared to a column name.
type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchContains MatchKind = "contains"
	MatchSuffix   MatchKind = "suffix"
)

// Pattern scores a column name as a coordinate candidate.
type Pattern struct {
	Match  MatchKind `json:"match" yaml:"match"`
	Token  string    `json:"token" yaml:"token"`
	Weight int       `json:"weight" yaml:"weight"`
}

func (p Pattern) matches(name string) bool {
	tok := strings.ToLower(p.Token)
	switch p.Match {
	case MatchExact:
		return name == tok
	case MatchContains:
		return strings.Contains(name, tok)
	case MatchSuffix:
		return strings.HasSuffix(name, tok)
	}
	return false
}

// Config holds the resolver tunables. The defaults are biased towards
// Central Europe: scaled integers are divided until they land near RefLat/RefLng.
type Config struct {
	RefLat       float64    `json:"refLat" yaml:"refLat"`
	RefLng       float64    `json:"refLng" yaml:"refLng"`
	LatBand      [2]float64 `json:"latBand" yaml:"latBand"`
	LngBand      [2]float64 `json:"lngBand" yaml:"lngBand"`
	SmallPenalty float64    `json:"smallPenalty" yaml:"smallPenalty"` // added when |q| < 1
	BandPenalty  float64    `json:"bandPenalty" yaml:"bandPenalty"`   // added when q is outside its band
	MaxScaleExp  int        `json:"maxScaleExp" yaml:"maxScaleExp"`
	LatPatterns  []Pattern  `json:"latPatterns" yaml:"latPatterns"`
	LngPatterns  []Pattern  `json:"lngPatterns" yaml:"lngPatterns"`
}

// DefaultConfig returns the Central-Europe tuned defaults.
func DefaultConfig() Config {
	return Config{
		RefLat:       52,
		RefLng:       10,
		LatBand:      [2]float64{30, 75},
		LngBand:      [2]float64{-20, 40},
		SmallPenalty: 1000,
		BandPenalty:  100,
		MaxScaleExp:  15,
		LatPatterns: []Pattern{
			{Match: MatchExact, Token: "lat", Weight: 100},
			{Match: MatchExact, Token: "latitude", Weight: 100},
			{Match: MatchExact, Token: "breitengrad", Weight: 100},
			{Match: MatchContains, Token: "lat", Weight: 50},
			{Match: MatchContains, Token: "breit", Weight: 50},
			{Match: MatchSuffix, Token: "y", Weight: 10},
		},
		LngPatterns: []Pattern{
			{Match: MatchExact, Token: "lng", Weight: 100},
			{Match: MatchExact, Token: "lon", Weight: 100},
			{Match: MatchExact, Token: "long", Weight: 100},
			{Match: MatchExact, Token: "longitude", Weight: 100},
			{Match: MatchExact, Token: "längengrad", Weight: 100},
			{Match: MatchExact, Token: "laengengrad", Weight: 100},
			{Match: MatchContains, Token: "lng", Weight: 50},
			{Match: MatchContains, Token: "lon", Weight: 50},
			{Match: MatchContains, Token: "läng", Weight: 50},
			{Match: MatchContains, Token: "laeng", Weight: 50},
			{Match: MatchSuffix, Token: "x", Weight: 10},
		},
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LatBand == [2]float64{} {
		c.LatBand = d.LatBand
	}
	if c.LngBand == [2]float64{} {
		c.LngBand = d.LngBand
	}
	if c.SmallPenalty == 0 {
		c.SmallPenalty = d.SmallPenalty
	}
	if c.BandPenalty == 0 {
		c.BandPenalty = d.BandPenalty
	}
	if c.MaxScaleExp <= 0 {
		c.MaxScaleExp = d.MaxScaleExp
	}
	if len(c.LatPatterns) == 0 {
		c.LatPatterns = d.LatPatterns
	}
	if len(c.LngPatterns) == 0 {
		c.LngPatterns = d.LngPatterns
	}
	if c.RefLat == 0 && c.RefLng == 0 {
		c.RefLat, c.RefLng = d.RefLat, d.RefLng
	}
	return c
}
