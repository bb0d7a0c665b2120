package api

import (
    "bufio"
    "errors"
    "net"
    "net/http"
    "strconv"
    "strings"
    "time"

    "golang.org/x/time/rate"

    "salesops/internal/metrics"
)

// RateLimit applies a token bucket per tenant. RATE_RPS <= 0 disables it.
func (s *Server) RateLimit(next http.Handler) http.Handler {
    if s.Config.RateRPS <= 0 { return next }
    burst := s.Config.RateBurst
    if burst <= 0 { burst = int(s.Config.RateRPS) + 1 }
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        // unauthenticated callers share one bucket; the handler answers 401
        p, _ := s.getPrincipal(r)
        if !s.limiter(p.Tenant, burst).Allow() {
            w.Header().Set("Retry-After", "1")
            writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
            return
        }
        next.ServeHTTP(w, r)
    })
}

func (s *Server) limiter(tenant string, burst int) *rate.Limiter {
    s.limMu.Lock()
    defer s.limMu.Unlock()
    l, ok := s.limiters[tenant]
    if !ok {
        l = rate.NewLimiter(rate.Limit(s.Config.RateRPS), burst)
        s.limiters[tenant] = l
    }
    return l
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (r *statusRecorder) WriteHeader(code int) { r.status = code; r.ResponseWriter.WriteHeader(code) }

// Flush keeps SSE working through the recorder.
func (r *statusRecorder) Flush() {
    if f, ok := r.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

// Hijack is required by the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    h, ok := r.ResponseWriter.(http.Hijacker)
    if !ok { return nil, nil, errors.New("hijack not supported") }
    r.status = http.StatusSwitchingProtocols
    return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Instrument records request counts and durations by route pattern.
func Instrument(next http.Handler) http.Handler {
    metrics.RegisterDefault()
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(rec, r)
        labels := []string{r.Method, RouteLabel(r.URL.Path), strconv.Itoa(rec.status)}
        metrics.HTTPRequests.WithLabelValues(labels...).Inc()
        metrics.HTTPDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
    })
}

// RouteLabel collapses dataset names so metric label cardinality stays bounded.
func RouteLabel(path string) string {
    for _, prefix := range []string{"/v1/datasets/", "/v1/admin/datasets/"} {
        if rest, ok := strings.CutPrefix(path, prefix); ok {
            if i := strings.IndexByte(rest, '/'); i >= 0 { return prefix + "{dataset}" + rest[i:] }
            return prefix + "{dataset}"
        }
    }
    return path
}
