package metrics

import (
    "net/http"
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, route pattern, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // CoordsResolved counts map rows by outcome (plotted, no_coords)
    CoordsResolved = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "coords_resolved_total", Help: "Rows passed through the coordinate resolver by outcome."},
        []string{"dataset", "outcome"},
    )
    // JoinRows counts enriched rows by outcome (matched, unmatched, skipped)
    JoinRows = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "join_rows_total", Help: "Rows processed by join enrichment by outcome."},
        []string{"dataset", "outcome"},
    )
    // Imports counts accepted dataset uploads
    Imports = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "imports_total", Help: "Accepted dataset imports."},
        []string{"dataset"},
    )
    // ImportRows tracks upload sizes
    ImportRows = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "import_rows", Help: "Rows per accepted import.", Buckets: []float64{10, 100, 1000, 5000, 20000, 100000}},
        []string{"dataset"},
    )
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(CoordsResolved)
        Registry.MustRegister(JoinRows)
        Registry.MustRegister(Imports)
        Registry.MustRegister(ImportRows)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
    RegisterDefault()
    return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
