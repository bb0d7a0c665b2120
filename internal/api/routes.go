package api

import (
    "net/http"

    "salesops/internal/metrics"
)

// Routes registers every endpoint on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
    mux := http.NewServeMux()

    // Dashboard reads
    mux.HandleFunc("/v1/datasets", s.DatasetsHandler)
    mux.HandleFunc("/v1/datasets/", s.DatasetByNameHandler) // rows, map, groups, cards, events/stream
    mux.HandleFunc("/v1/ws", s.WSHandler)

    // Admin
    mux.HandleFunc("/v1/admin/datasets/", s.AdminDatasetHandler) // imports, config
    mux.HandleFunc("/v1/admin/audit", s.AuditHandler)

    // Health
    mux.HandleFunc("/healthz", s.HealthHandler)
    mux.HandleFunc("/readyz", s.ReadyHandler)

    // Ops
    mux.Handle("/metrics", metrics.Handler())
    mux.HandleFunc("/debug/info", s.DebugJSON)
    mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
    mux.HandleFunc("/openapi.json", s.OpenAPIHandler)
    mux.HandleFunc("/docs", s.DocsHandler)
    return mux
}
