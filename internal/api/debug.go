package api

import (
    "net/http"
    "os"
    "time"

    "salesops/internal/buildinfo"
)

// DebugJSON handles /debug/info; it reports effective settings without secrets.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    backend := "memory"
    if b, ok := s.Store.(interface{ Backend() string }); ok { backend = b.Backend() }
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "PORT":           s.Config.Port,
            "AUTH_MODE":      os.Getenv("AUTH_MODE"),
            "RATE_RPS":       s.Config.RateRPS,
            "RATE_BURST":     s.Config.RateBurst,
            "STORE":          backend,
            "HAS_REDIS_URL":  s.Config.RedisURL != "",
            "DATASETS":       s.Config.Datasets,
            "JOIN":           s.Config.Join,
            "GEO_REFERENCE":  []float64{s.Resolver.Config().RefLat, s.Resolver.Config().RefLng},
            "MAX_IMPORT_ROWS": s.Config.MaxImportRows,
        },
    }
    writeJSON(w, 200, info)
}
