package view

import (
	"sort"
	"strings"

	"salesops/internal/geo"
	"salesops/internal/keys"
	"salesops/internal/model"
)

// Column describes one table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
}

// TableRow holds values in column order; missing values are "".
type TableRow struct {
	Index  int   `json:"rowIndex"`
	Values []any `json:"values"`
}

type TableView struct {
	Columns []Column   `json:"columns"`
	Rows    []TableRow `json:"rows"`
}

// Columns resolves display columns. Without configured columns every key
// seen in rows is shown in sorted order. Join aliases take their join label.
func Columns(rows []model.Row, cfg model.ViewConfig) []Column {
	names := cfg.Columns
	if len(names) == 0 {
		seen := map[string]any{}
		for _, r := range rows {
			for k := range r.Data { seen[k] = nil }
		}
		names = keys.SortedKeys(seen)
	}
	joinCols := map[string]model.JoinColumn{}
	for _, j := range cfg.Joins {
		for _, c := range j.Columns { joinCols[c.As] = c }
	}
	out := make([]Column, 0, len(names))
	for _, n := range names {
		c := Column{Key: n, Label: n, Type: cfg.Types[n]}
		if jc, ok := joinCols[n]; ok {
			if jc.Label != "" { c.Label = jc.Label }
			if c.Type == "" { c.Type = jc.Type }
		}
		if l := cfg.Labels[n]; l != "" { c.Label = l }
		out = append(out, c)
	}
	return out
}

// Table projects rows onto the configured columns.
func Table(rows []model.Row, cfg model.ViewConfig) TableView {
	cols := Columns(rows, cfg)
	out := TableView{Columns: cols, Rows: make([]TableRow, 0, len(rows))}
	for _, r := range rows {
		vals := make([]any, len(cols))
		for i, c := range cols {
			v, ok := r.Data[c.Key]
			if !ok || v == nil { v = "" }
			vals[i] = v
		}
		out.Rows = append(out.Rows, TableRow{Index: r.Index, Values: vals})
	}
	return out
}

// Marker is one plotted row.
type Marker struct {
	RowIndex int     `json:"rowIndex"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	LatKey   string  `json:"latKey"`
	LngKey   string  `json:"lngKey"`
	Label    string  `json:"label,omitempty"`
	Group    string  `json:"group,omitempty"`
}

// MapView reports plotted markers and how many rows had no usable coordinates.
type MapView struct {
	Markers  []Marker `json:"markers"`
	Plotted  int      `json:"plotted"`
	NoCoords int      `json:"no_coords"`
}

// ResolverFor applies the dataset's reference point override, if any.
func ResolverFor(base *geo.Resolver, opts model.MapOptions) *geo.Resolver {
	if opts.RefLat == nil && opts.RefLng == nil { return base }
	c := base.Config()
	lat, lng := c.RefLat, c.RefLng
	if opts.RefLat != nil { lat = *opts.RefLat }
	if opts.RefLng != nil { lng = *opts.RefLng }
	return base.WithReference(lat, lng)
}

// Markers resolves coordinates for every row.
func Markers(rows []model.Row, r *geo.Resolver, cfg model.ViewConfig) MapView {
	r = ResolverFor(r, cfg.Map)
	opts := geo.Options{Mode: geo.Mode(cfg.Map.Mode), LatField: cfg.Map.LatField, LngField: cfg.Map.LngField}
	out := MapView{Markers: []Marker{}}
	for _, row := range rows {
		c, ok := r.Resolve(row.Data, opts)
		if !ok {
			out.NoCoords++
			continue
		}
		m := Marker{RowIndex: row.Index, Lat: c.Lat, Lng: c.Lng, LatKey: c.LatKey, LngKey: c.LngKey}
		if cfg.Map.LabelField != "" { m.Label = keys.String(row.Data[cfg.Map.LabelField]) }
		if cfg.GroupBy != "" { m.Group = groupValue(row.Data[cfg.GroupBy]) }
		out.Markers = append(out.Markers, m)
		out.Plotted++
	}
	return out
}

// NoGroup labels rows whose group field is blank.
const NoGroup = "(none)"

type GroupCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

func groupValue(v any) string {
	s := strings.TrimSpace(keys.String(v))
	if s == "" { return NoGroup }
	return s
}

// Group counts rows per value of field, largest groups first.
func Group(rows []model.Row, field string) []GroupCount {
	counts := map[string]int{}
	for _, r := range rows { counts[groupValue(r.Data[field])]++ }
	out := make([]GroupCount, 0, len(counts))
	for v, n := range counts { out = append(out, GroupCount{Value: v, Count: n}) }
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count { return out[i].Count > out[j].Count }
		return out[i].Value < out[j].Value
	})
	return out
}

type CardField struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value any    `json:"value"`
}

type Card struct {
	RowIndex int         `json:"rowIndex"`
	Title    string      `json:"title"`
	Subtitle string      `json:"subtitle,omitempty"`
	Fields   []CardField `json:"fields"`
}

// Cards builds the card view. Without a title field the first display
// column is used; without card fields all display columns are listed.
func Cards(rows []model.Row, cfg model.ViewConfig) []Card {
	cols := Columns(rows, cfg)
	labels := make(map[string]Column, len(cols))
	for _, c := range cols { labels[c.Key] = c }

	title := cfg.Cards.TitleField
	if title == "" && len(cols) > 0 { title = cols[0].Key }
	fields := cfg.Cards.Fields
	if len(fields) == 0 {
		for _, c := range cols {
			if c.Key != title { fields = append(fields, c.Key) }
		}
	}

	out := make([]Card, 0, len(rows))
	for _, r := range rows {
		card := Card{RowIndex: r.Index, Title: keys.String(r.Data[title]), Fields: make([]CardField, 0, len(fields))}
		if cfg.Cards.SubtitleField != "" { card.Subtitle = keys.String(r.Data[cfg.Cards.SubtitleField]) }
		for _, f := range fields {
			label := f
			if c, ok := labels[f]; ok { label = c.Label } else if l := cfg.Labels[f]; l != "" { label = l }
			v, ok := r.Data[f]
			if !ok || v == nil { v = "" }
			card.Fields = append(card.Fields, CardField{Key: f, Label: label, Value: v})
		}
		out = append(out, card)
	}
	return out
}
