// Package join enriches rows of one dataset with columns of another dataset's
// current snapshot. Enrichment happens at read time and never writes back.
package join

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"salesops/internal/keys"
	"salesops/internal/model"
)

// Source loads the current snapshot of a dataset.
type Source interface {
	// LatestImportID returns "" when the dataset has no import.
	LatestImportID(ctx context.Context, tenantID, dataset string) (string, error)
	// ImportRows returns at most limit rows ordered by row index.
	ImportRows(ctx context.Context, tenantID, importID string, limit int) ([]model.Row, error)
}

// ConflictPolicy decides which source row wins when a key occurs twice.
type ConflictPolicy string

const (
	ConflictFirst ConflictPolicy = "first"
	ConflictLast  ConflictPolicy = "last"
	ConflictError ConflictPolicy = "error"
)

// DefaultMaxSourceRows bounds how much of a source dataset one join loads.
// Matches beyond the cap are silently missed.
const DefaultMaxSourceRows = 5000

// ErrAmbiguousKey is returned under ConflictError when a looked-up key
// matches more than one source row.
var ErrAmbiguousKey = errors.New("ambiguous join key")

// Config tunes the engine.
type Config struct {
	MaxSourceRows  int            `json:"maxSourceRows" yaml:"maxSourceRows"`
	ConflictPolicy ConflictPolicy `json:"conflictPolicy" yaml:"conflictPolicy"`
}

// Engine applies join specs. It keeps no state between calls.
type Engine struct {
	src Source
	cfg Config
}

// NewEngine constructs an Engine reading snapshots from src.
func NewEngine(src Source, cfg Config) *Engine {
	if cfg.MaxSourceRows <= 0 {
		cfg.MaxSourceRows = DefaultMaxSourceRows
	}
	switch cfg.ConflictPolicy {
	case ConflictFirst, ConflictLast, ConflictError:
	default:
		cfg.ConflictPolicy = ConflictFirst
	}
	return &Engine{src: src, cfg: cfg}
}

// Result describes what one join spec contributed.
type Result struct {
	SourceDataset string `json:"sourceDataset"`
	Skipped       string `json:"skipped,omitempty"`
	SourceRows    int    `json:"sourceRows"`
	Truncated     bool   `json:"truncated,omitempty"`
	Matched       int    `json:"matched"`
	Unmatched     int    `json:"unmatched"`
}

// Report collects per-join results in spec order.
type Report struct {
	Joins []Result `json:"joins"`
}

// Apply returns copies of rows enriched by specs. Specs run in order; a later
// join writing an alias used by an earlier one overwrites it. Misconfigured
// specs contribute nothing; errors from the Source are returned.
func (e *Engine) Apply(ctx context.Context, tenantID string, rows []model.Row, specs []model.JoinSpec) ([]model.Row, Report, error) {
	out := make([]model.Row, len(rows))
	for i, r := range rows {
		data := make(map[string]any, len(r.Data))
		for k, v := range r.Data {
			data[k] = v
		}
		out[i] = model.Row{Index: r.Index, Data: data}
	}
	var rep Report
	for _, spec := range specs {
		res, err := e.applyOne(ctx, tenantID, out, spec)
		rep.Joins = append(rep.Joins, res)
		if err != nil {
			return nil, rep, fmt.Errorf("join %s: %w", spec.SourceDataset, err)
		}
	}
	return out, rep, nil
}

func (e *Engine) applyOne(ctx context.Context, tenantID string, rows []model.Row, spec model.JoinSpec) (Result, error) {
	res := Result{SourceDataset: spec.SourceDataset}
	cols := usableColumns(spec.Columns)
	switch {
	case strings.TrimSpace(spec.SourceDataset) == "":
		res.Skipped = "missing source_dataset"
		return res, nil
	case strings.TrimSpace(spec.LocalKey) == "" || strings.TrimSpace(spec.SourceKey) == "":
		res.Skipped = "missing key"
		return res, nil
	case len(cols) == 0:
		res.Skipped = "no columns"
		return res, nil
	}

	wanted := map[string]struct{}{}
	for _, r := range rows {
		if k := keys.Normalize(r.Data[spec.LocalKey]); k != "" {
			wanted[k] = struct{}{}
		}
	}
	if len(wanted) == 0 {
		res.Skipped = "no local keys"
		res.Unmatched = len(rows)
		return res, nil
	}

	importID, err := e.src.LatestImportID(ctx, tenantID, spec.SourceDataset)
	if err != nil {
		return res, err
	}
	if importID == "" {
		res.Skipped = "source has no import"
		res.Unmatched = len(rows)
		return res, nil
	}
	srcRows, err := e.src.ImportRows(ctx, tenantID, importID, e.cfg.MaxSourceRows)
	if err != nil {
		return res, err
	}
	res.SourceRows = len(srcRows)
	res.Truncated = len(srcRows) >= e.cfg.MaxSourceRows

	lookup := make(map[string]map[string]any, len(wanted))
	for _, sr := range srcRows {
		k := keys.Normalize(sr.Data[spec.SourceKey])
		if _, ok := wanted[k]; !ok {
			continue
		}
		if _, dup := lookup[k]; dup {
			switch e.cfg.ConflictPolicy {
			case ConflictFirst:
				continue
			case ConflictError:
				return res, fmt.Errorf("%w: %s=%q", ErrAmbiguousKey, spec.SourceKey, k)
			}
		}
		lookup[k] = sr.Data
	}

	for _, r := range rows {
		src, ok := lookup[keys.Normalize(r.Data[spec.LocalKey])]
		if !ok {
			res.Unmatched++
			continue
		}
		res.Matched++
		for _, c := range cols {
			if v, ok := src[c.SourceCol]; ok {
				r.Data[c.As] = v
			}
		}
	}
	return res, nil
}

func usableColumns(cols []model.JoinColumn) []model.JoinColumn {
	out := make([]model.JoinColumn, 0, len(cols))
	for _, c := range cols {
		if strings.TrimSpace(c.SourceCol) == "" || strings.TrimSpace(c.As) == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}
