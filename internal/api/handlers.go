package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "salesops/internal/join"
    "salesops/internal/metrics"
    "salesops/internal/model"
    "salesops/internal/store"
    "salesops/internal/view"
)

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using a SQL store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}

type datasetSummary struct {
    Name   string        `json:"name"`
    Latest *model.Import `json:"latestImport,omitempty"`
}

// DatasetsHandler handles GET /v1/datasets
func (s *Server) DatasetsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/datasets" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    p, ok := s.principal(w, r)
    if !ok { return }
    out := make([]datasetSummary, 0, len(s.Config.Datasets))
    for _, ds := range s.Config.Datasets {
        sum := datasetSummary{Name: ds}
        imp, err := s.Store.LatestImport(r.Context(), p.Tenant, ds)
        switch {
        case err == nil:
            sum.Latest = &imp
        case !errors.Is(err, store.ErrNotFound):
            writeProblem(w, 500, "List datasets failed", err.Error(), r.URL.Path)
            return
        }
        out = append(out, sum)
    }
    writeJSON(w, 200, map[string]any{"items": out})
}

// DatasetByNameHandler handles /v1/datasets/{ds}/rows|map|groups|cards|events/stream
func (s *Server) DatasetByNameHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/datasets/")
    parts := strings.Split(strings.Trim(rest, "/"), "/")
    if rest == r.URL.Path || len(parts) < 2 || parts[0] == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "expected /v1/datasets/{dataset}/{view}", r.URL.Path)
        return
    }
    ds, action := parts[0], strings.Join(parts[1:], "/")
    if !s.Config.KnownDataset(ds) {
        writeProblem(w, http.StatusNotFound, "Unknown dataset", ds, r.URL.Path)
        return
    }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p, ok := s.principal(w, r)
    if !ok { return }
    if action == "events/stream" {
        s.streamDatasetEvents(w, r, p.Tenant, ds)
        return
    }

    var extra []model.FilterRule
    for _, raw := range r.URL.Query()["f"] {
        f, err := view.ParseFilter(raw)
        if err != nil { writeProblem(w, 400, "Invalid filter", err.Error(), r.URL.Path); return }
        extra = append(extra, f)
    }

    switch action {
    case "rows", "map", "groups", "cards":
    default:
        writeProblem(w, http.StatusNotFound, "Not Found", "unknown view "+action, r.URL.Path)
        return
    }
    dv, err := s.loadView(r.Context(), p.Tenant, ds, extra)
    if err != nil { s.writeViewError(w, r, ds, err); return }

    switch action {
    case "rows":
        total := len(dv.Rows)
        offset, limit := page(r)
        tv := view.Table(window(dv.Rows, offset, limit), dv.Config)
        writeJSON(w, 200, map[string]any{
            "dataset": ds, "importId": dv.Import.ID, "total": total, "offset": offset, "limit": limit,
            "columns": tv.Columns, "rows": tv.Rows, "joins": dv.Report.Joins,
        })
    case "map":
        mv := view.Markers(dv.Rows, s.Resolver, dv.Config)
        metrics.CoordsResolved.WithLabelValues(ds, "plotted").Add(float64(mv.Plotted))
        metrics.CoordsResolved.WithLabelValues(ds, "no_coords").Add(float64(mv.NoCoords))
        writeJSON(w, 200, map[string]any{
            "dataset": ds, "importId": dv.Import.ID, "total": len(dv.Rows),
            "markers": mv.Markers, "plotted": mv.Plotted, "no_coords": mv.NoCoords,
        })
    case "groups":
        field := r.URL.Query().Get("field")
        if field == "" { field = dv.Config.GroupBy }
        if field == "" { writeProblem(w, 400, "Group field required", "pass ?field= or configure groupBy", r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"dataset": ds, "field": field, "total": len(dv.Rows), "groups": view.Group(dv.Rows, field)})
    case "cards":
        total := len(dv.Rows)
        offset, limit := page(r)
        writeJSON(w, 200, map[string]any{
            "dataset": ds, "total": total, "offset": offset, "limit": limit,
            "cards": view.Cards(window(dv.Rows, offset, limit), dv.Config),
        })
    }
}

func (s *Server) writeViewError(w http.ResponseWriter, r *http.Request, ds string, err error) {
    switch {
    case errors.Is(err, store.ErrNotFound):
        writeProblem(w, http.StatusNotFound, "Dataset not imported", fmt.Sprintf("%s has no import yet", ds), r.URL.Path)
    case errors.Is(err, join.ErrAmbiguousKey):
        writeProblem(w, http.StatusConflict, "Ambiguous join key", err.Error(), r.URL.Path)
    default:
        writeProblem(w, http.StatusInternalServerError, "Load dataset failed", err.Error(), r.URL.Path)
    }
}

func page(r *http.Request) (offset, limit int) {
    return queryInt(r, "offset", 0, 0), queryInt(r, "limit", 100, 1000)
}

func window(rows []model.Row, offset, limit int) []model.Row {
    if offset >= len(rows) { return nil }
    end := len(rows)
    if limit > 0 && offset+limit < end { end = offset + limit }
    return rows[offset:end]
}

// streamDatasetEvents serves SSE for import and config changes of one dataset.
func (s *Server) streamDatasetEvents(w http.ResponseWriter, r *http.Request, tenant, ds string) {
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    topic := topicFor(tenant, ds)
    ch := s.Broker.Subscribe(topic)
    defer s.Broker.Unsubscribe(topic, ch)
    heartbeat := func() {
        fmt.Fprintf(w, "event: heartbeat\n")
        fmt.Fprintf(w, "data: {\"dataset\":%q,\"ts\":%q}\n\n", ds, time.Now().UTC().Format(time.RFC3339))
        flusher.Flush()
    }
    heartbeat()
    ticker := time.NewTicker(15 * time.Second)
    defer ticker.Stop()
    for {
        select {
        case <-r.Context().Done():
            return
        case evt, ok := <-ch:
            if !ok { return }
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-ticker.C:
            heartbeat()
        }
    }
}

// publish notifies SSE and websocket subscribers of a dataset change.
func (s *Server) publish(tenant, ds, eventType string, data map[string]any) {
    if data == nil { data = map[string]any{} }
    data["dataset"] = ds
    data["ts"] = time.Now().UTC().Format(time.RFC3339)
    s.Broker.Publish(topicFor(tenant, ds), SSEEvent{Type: eventType, Data: data})
}
