package api

import (
    "context"
    "errors"
    "fmt"

    "salesops/internal/join"
    "salesops/internal/metrics"
    "salesops/internal/model"
    "salesops/internal/store"
    "salesops/internal/view"
)

// datasetView is the enriched, filtered snapshot of one dataset.
type datasetView struct {
    Import model.Import
    Config model.ViewConfig
    Rows   []model.Row
    Report join.Report
}

// viewConfig returns the saved config, the configured seed, or an empty config.
func (s *Server) viewConfig(ctx context.Context, tenant, dataset string) (model.ViewConfig, error) {
    cfg, err := s.Store.GetViewConfig(ctx, tenant, dataset)
    if errors.Is(err, store.ErrNotFound) { return s.Config.Views[dataset], nil }
    return cfg, err
}

// loadView reads the current import of dataset, applies its joins and then
// the config filters plus extra. It returns store.ErrNotFound when the
// dataset has never been imported.
func (s *Server) loadView(ctx context.Context, tenant, dataset string, extra []model.FilterRule) (datasetView, error) {
    cfg, err := s.viewConfig(ctx, tenant, dataset)
    if err != nil { return datasetView{}, err }
    snaps := store.NewSnapshots(s.Store)
    imp, err := snaps.Latest(ctx, tenant, dataset)
    if err != nil { return datasetView{}, err }
    rows, err := snaps.ImportRows(ctx, tenant, imp.ID, 0)
    if err != nil { return datasetView{}, fmt.Errorf("load %s rows: %w", dataset, err) }

    engine := join.NewEngine(snaps, s.Config.Join)
    enriched, rep, err := engine.Apply(ctx, tenant, rows, cfg.Joins)
    if err != nil { return datasetView{}, err }
    for _, j := range rep.Joins {
        if j.Skipped != "" {
            metrics.JoinRows.WithLabelValues(dataset, "skipped").Add(float64(len(rows)))
            continue
        }
        metrics.JoinRows.WithLabelValues(dataset, "matched").Add(float64(j.Matched))
        metrics.JoinRows.WithLabelValues(dataset, "unmatched").Add(float64(j.Unmatched))
    }

    rules := append(append([]model.FilterRule(nil), cfg.Filters...), extra...)
    return datasetView{Import: imp, Config: cfg, Rows: view.Filter(enriched, rules), Report: rep}, nil
}
