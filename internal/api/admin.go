package api

import (
    "encoding/json"
    "errors"
    "log"
    "net/http"
    "strings"

    "salesops/internal/ingest"
    "salesops/internal/metrics"
    "salesops/internal/model"
    "salesops/internal/store"
)

// view configs are small documents; uploads have their own limit
const maxConfigBytes = 1 << 20

// AdminDatasetHandler handles /v1/admin/datasets/{ds}/imports and /v1/admin/datasets/{ds}/config
func (s *Server) AdminDatasetHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/datasets/")
    parts := strings.Split(strings.Trim(rest, "/"), "/")
    if rest == r.URL.Path || len(parts) != 2 || parts[0] == "" {
        writeProblem(w, 404, "Not Found", "expected /v1/admin/datasets/{dataset}/imports|config", r.URL.Path)
        return
    }
    p, ok := s.principal(w, r)
    if !ok { return }
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    ds := parts[0]
    if !s.Config.KnownDataset(ds) { writeProblem(w, 404, "Unknown dataset", ds, r.URL.Path); return }

    switch parts[1] {
    case "imports":
        switch r.Method {
        case http.MethodPost:
            s.createImport(w, r, p, ds)
        case http.MethodGet:
            items, err := s.Store.ListImports(r.Context(), p.Tenant, ds, queryInt(r, "limit", 50, 500))
            if err != nil { writeProblem(w, 500, "List imports failed", err.Error(), r.URL.Path); return }
            writeJSON(w, 200, map[string]any{"items": items})
        default:
            w.WriteHeader(405)
        }
    case "config":
        switch r.Method {
        case http.MethodGet:
            cfg, err := s.viewConfig(r.Context(), p.Tenant, ds)
            if err != nil { writeProblem(w, 500, "Get config failed", err.Error(), r.URL.Path); return }
            writeJSON(w, 200, cfg)
        case http.MethodPut:
            s.saveConfig(w, r, p, ds)
        default:
            w.WriteHeader(405)
        }
    default:
        writeProblem(w, 404, "Not Found", "", r.URL.Path)
    }
}

func (s *Server) createImport(w http.ResponseWriter, r *http.Request, p Principal, ds string) {
    r.Body = http.MaxBytesReader(w, r.Body, int64(s.Config.MaxUploadMB)<<20)
    file, hdr, err := r.FormFile("file")
    if err != nil {
        var tooBig *http.MaxBytesError
        if errors.As(err, &tooBig) { writeProblem(w, 413, "Upload too large", err.Error(), r.URL.Path); return }
        writeProblem(w, 400, "Missing file", "multipart field \"file\" required: "+err.Error(), r.URL.Path)
        return
    }
    defer func() { _ = file.Close() }()

    sheet, err := ingest.ParseSheet(file, hdr.Filename, s.Config.MaxImportRows)
    switch {
    case errors.Is(err, ingest.ErrUnsupportedFormat):
        writeProblem(w, 415, "Unsupported file format", err.Error(), r.URL.Path)
        return
    case errors.Is(err, ingest.ErrTooManyRows):
        writeProblem(w, 413, "Too many rows", err.Error(), r.URL.Path)
        return
    case err != nil:
        writeProblem(w, 400, "Unreadable spreadsheet", err.Error(), r.URL.Path)
        return
    }

    imp, err := s.Store.CreateImport(r.Context(), p.Tenant, ds, hdr.Filename, sheet.Rows)
    if err != nil { writeProblem(w, 500, "Store import failed", err.Error(), r.URL.Path); return }
    metrics.Imports.WithLabelValues(ds).Inc()
    metrics.ImportRows.WithLabelValues(ds).Observe(float64(imp.RowCount))
    s.audit(r, p, "import.created", ds, map[string]any{"importId": imp.ID, "fileName": imp.FileName, "rows": imp.RowCount})
    s.publish(p.Tenant, ds, "import.created", map[string]any{"importId": imp.ID, "rows": imp.RowCount})
    log.Printf("import %s tenant=%s dataset=%s rows=%d", imp.ID, p.Tenant, ds, imp.RowCount)
    writeJSON(w, http.StatusCreated, map[string]any{"import": imp, "headers": sheet.Headers})
}

func (s *Server) saveConfig(w http.ResponseWriter, r *http.Request, p Principal, ds string) {
    var cfg model.ViewConfig
    dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfigBytes))
    dec.DisallowUnknownFields()
    if err := dec.Decode(&cfg); err != nil {
        var tooBig *http.MaxBytesError
        if errors.As(err, &tooBig) { writeProblem(w, 413, "Config too large", err.Error(), r.URL.Path); return }
        writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateViewConfig(&cfg, s.Config.Datasets); err != nil {
        writeProblem(w, 400, "Invalid view config", err.Error(), r.URL.Path)
        return
    }
    saved, err := s.Store.SaveViewConfig(r.Context(), p.Tenant, ds, cfg)
    if err != nil { writeProblem(w, 500, "Save config failed", err.Error(), r.URL.Path); return }
    s.audit(r, p, "config.updated", ds, map[string]any{"joins": len(saved.Joins), "columns": len(saved.Columns)})
    s.publish(p.Tenant, ds, "config.updated", nil)
    writeJSON(w, 200, saved)
}

// audit failures are logged; they never fail the admin action itself.
func (s *Server) audit(r *http.Request, p Principal, action, ds string, detail map[string]any) {
    e := model.AuditEntry{TenantID: p.Tenant, Actor: p.Actor(), Action: action, Dataset: ds, Detail: detail}
    if _, err := s.Store.AppendAudit(r.Context(), e); err != nil {
        log.Printf("audit %s %s: %v", action, ds, err)
    }
}

// AuditHandler handles GET /v1/admin/audit
func (s *Server) AuditHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/audit" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p, ok := s.principal(w, r)
    if !ok { return }
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    items, next, err := s.Store.ListAudit(r.Context(), p.Tenant, r.URL.Query().Get("cursor"), queryInt(r, "limit", 100, 500))
    if errors.Is(err, store.ErrBadCursor) { writeProblem(w, 400, "Invalid cursor", err.Error(), r.URL.Path); return }
    if err != nil { writeProblem(w, 500, "List audit failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}
