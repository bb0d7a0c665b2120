package api

import (
    "bytes"
    "context"
    "crypto/hmac"
    "crypto/sha256"
    "encoding/base64"
    "encoding/json"
    "mime/multipart"
    "net/http"
    "net/http/httptest"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/gorilla/websocket"

    "salesops/internal/config"
)

const dealersCSV = "dealer_id;name;lat;lon;region\nD1;Autohaus Mitte;50.11;8.68;south\nD2;Nord GmbH;53.55;9.99;north\nD3;Ohne Ort;;;north\n"
const inventoryCSV = "dealer;stock\nd1;12\nD2;7\n"

const dealersJoin = `{"groupBy":"region","joins":[{"source_dataset":"inventory","local_key":"dealer_id","source_key":"dealer","columns":[{"source_col":"stock","as":"inv_stock","label":"Stock","type":"number"}]}]}`

func newTestServer(t *testing.T) *Server {
    t.Helper()
    cfg := config.Default()
    cfg.Migrate = false
    s, err := NewServerWithConfig(cfg)
    if err != nil { t.Fatalf("NewServerWithConfig: %v", err) }
    return s
}

func do(t *testing.T, h http.Handler, req *http.Request, headers ...string) *httptest.ResponseRecorder {
    t.Helper()
    for i := 0; i+1 < len(headers); i += 2 { req.Header.Set(headers[i], headers[i+1]) }
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, req)
    return rr
}

func uploadRequest(t *testing.T, url, fileName, content string) *http.Request {
    t.Helper()
    var buf bytes.Buffer
    mw := multipart.NewWriter(&buf)
    fw, err := mw.CreateFormFile("file", fileName)
    if err != nil { t.Fatal(err) }
    _, _ = fw.Write([]byte(content))
    _ = mw.Close()
    req := httptest.NewRequest(http.MethodPost, url, &buf)
    req.Header.Set("Content-Type", mw.FormDataContentType())
    return req
}

func upload(t *testing.T, h http.Handler, tenant, ds, fileName, content string) {
    t.Helper()
    rr := do(t, h, uploadRequest(t, "/v1/admin/datasets/"+ds+"/imports", fileName, content), "X-Tenant-Id", tenant)
    if rr.Code != http.StatusCreated { t.Fatalf("upload %s: got %d %s", ds, rr.Code, rr.Body.String()) }
}

func putConfig(t *testing.T, h http.Handler, tenant, ds, body string) *httptest.ResponseRecorder {
    t.Helper()
    req := httptest.NewRequest(http.MethodPut, "/v1/admin/datasets/"+ds+"/config", strings.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    return do(t, h, req, "X-Tenant-Id", tenant)
}

func getJSON(t *testing.T, h http.Handler, path string, out any, headers ...string) int {
    t.Helper()
    rr := do(t, h, httptest.NewRequest(http.MethodGet, path, nil), headers...)
    if out != nil && rr.Code == 200 {
        if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil { t.Fatalf("decode %s: %v", path, err) }
    }
    return rr.Code
}

func TestHealthReady(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
}

func TestImportJoinAndViews(t *testing.T) {
    s := newTestServer(t)
    h := s.Routes()
    upload(t, h, "t_a", "dealers", "dealers.csv", dealersCSV)
    upload(t, h, "t_a", "inventory", "inventory.csv", inventoryCSV)
    if rr := putConfig(t, h, "t_a", "dealers", dealersJoin); rr.Code != 200 { t.Fatalf("put config: %d %s", rr.Code, rr.Body.String()) }

    var rows struct {
        Total   int `json:"total"`
        Columns []struct{ Key, Label string } `json:"columns"`
        Rows    []struct {
            Index  int   `json:"rowIndex"`
            Values []any `json:"values"`
        } `json:"rows"`
        Joins []struct{ Matched, Unmatched int } `json:"joins"`
    }
    if code := getJSON(t, h, "/v1/datasets/dealers/rows", &rows, "X-Tenant-Id", "t_a"); code != 200 { t.Fatalf("rows: %d", code) }
    if rows.Total != 3 { t.Fatalf("total = %d", rows.Total) }
    if len(rows.Joins) != 1 || rows.Joins[0].Matched != 2 || rows.Joins[0].Unmatched != 1 { t.Fatalf("join report = %+v", rows.Joins) }
    stockCol := -1
    for i, c := range rows.Columns {
        if c.Key == "inv_stock" { stockCol = i; if c.Label != "Stock" { t.Fatalf("label = %q", c.Label) } }
    }
    if stockCol < 0 { t.Fatalf("inv_stock column missing: %+v", rows.Columns) }
    stock := map[int]any{}
    for _, r := range rows.Rows { stock[r.Index] = r.Values[stockCol] }
    if stock[0] != "12" || stock[1] != "7" || stock[2] != "" { t.Fatalf("joined stock = %v", stock) }

    var mv struct {
        Plotted  int `json:"plotted"`
        NoCoords int `json:"no_coords"`
        Markers  []struct{ Lat, Lng float64 } `json:"markers"`
    }
    if code := getJSON(t, h, "/v1/datasets/dealers/map", &mv, "X-Tenant-Id", "t_a"); code != 200 { t.Fatalf("map: %d", code) }
    if mv.Plotted != 2 || mv.NoCoords != 1 || len(mv.Markers) != 2 { t.Fatalf("map = %+v", mv) }
    if mv.Markers[0].Lat != 50.11 || mv.Markers[0].Lng != 8.68 { t.Fatalf("first marker = %+v", mv.Markers[0]) }

    var gv struct {
        Field  string `json:"field"`
        Groups []struct{ Value string; Count int } `json:"groups"`
    }
    if code := getJSON(t, h, "/v1/datasets/dealers/groups", &gv, "X-Tenant-Id", "t_a"); code != 200 { t.Fatalf("groups: %d", code) }
    if gv.Field != "region" || len(gv.Groups) != 2 || gv.Groups[0].Value != "north" || gv.Groups[0].Count != 2 { t.Fatalf("groups = %+v", gv) }

    var cv struct {
        Total int `json:"total"`
        Cards []any `json:"cards"`
    }
    if code := getJSON(t, h, "/v1/datasets/dealers/cards?limit=2", &cv, "X-Tenant-Id", "t_a"); code != 200 { t.Fatalf("cards: %d", code) }
    if cv.Total != 3 || len(cv.Cards) != 2 { t.Fatalf("cards total=%d len=%d", cv.Total, len(cv.Cards)) }

    rows.Total = 0
    if code := getJSON(t, h, "/v1/datasets/dealers/rows?f=region:eq:NORTH", &rows, "X-Tenant-Id", "t_a"); code != 200 { t.Fatalf("filtered rows: %d", code) }
    if rows.Total != 2 { t.Fatalf("filtered total = %d", rows.Total) }
    if code := getJSON(t, h, "/v1/datasets/dealers/rows?f=region:bogus:x", nil, "X-Tenant-Id", "t_a"); code != 400 { t.Fatalf("bad filter: %d", code) }

    var list struct {
        Items []struct {
            Name   string `json:"name"`
            Latest *struct{ RowCount int } `json:"latestImport"`
        } `json:"items"`
    }
    if code := getJSON(t, h, "/v1/datasets", &list, "X-Tenant-Id", "t_a"); code != 200 { t.Fatalf("datasets: %d", code) }
    for _, it := range list.Items {
        switch it.Name {
        case "dealers":
            if it.Latest == nil || it.Latest.RowCount != 3 { t.Fatalf("dealers latest = %+v", it.Latest) }
        case "backlog":
            if it.Latest != nil { t.Fatalf("backlog should have no import") }
        }
    }
}

func TestReimportReplacesCurrent(t *testing.T) {
    s := newTestServer(t)
    h := s.Routes()
    upload(t, h, "t_a", "dealers", "v1.csv", dealersCSV)
    upload(t, h, "t_a", "dealers", "v2.csv", "dealer_id;name\nD9;Neu\n")
    var rows struct{ Total int `json:"total"` }
    if code := getJSON(t, h, "/v1/datasets/dealers/rows", &rows, "X-Tenant-Id", "t_a"); code != 200 { t.Fatalf("rows: %d", code) }
    if rows.Total != 1 { t.Fatalf("total = %d, want only the latest import", rows.Total) }
    var hist struct{ Items []struct{ FileName string } `json:"items"` }
    if code := getJSON(t, h, "/v1/admin/datasets/dealers/imports", &hist, "X-Tenant-Id", "t_a"); code != 200 { t.Fatalf("imports: %d", code) }
    if len(hist.Items) != 2 || hist.Items[0].FileName != "v2.csv" { t.Fatalf("history = %+v", hist.Items) }
}

func TestDatasetNotFound(t *testing.T) {
    s := newTestServer(t)
    h := s.Routes()
    rr := do(t, h, httptest.NewRequest(http.MethodGet, "/v1/datasets/backlog/rows", nil))
    if rr.Code != 404 || !strings.Contains(rr.Body.String(), "Dataset not imported") { t.Fatalf("not imported: %d %s", rr.Code, rr.Body.String()) }
    rr = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/datasets/nope/rows", nil))
    if rr.Code != 404 || !strings.Contains(rr.Body.String(), "Unknown dataset") { t.Fatalf("unknown: %d %s", rr.Code, rr.Body.String()) }
    if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" { t.Fatalf("content type = %q", ct) }
}

func TestTenantIsolation(t *testing.T) {
    s := newTestServer(t)
    h := s.Routes()
    upload(t, h, "t_a", "dealers", "dealers.csv", dealersCSV)
    if code := getJSON(t, h, "/v1/datasets/dealers/rows", nil, "X-Tenant-Id", "t_b"); code != 404 { t.Fatalf("other tenant rows: %d", code) }
    if code := getJSON(t, h, "/v1/datasets/dealers/rows", nil, "X-Tenant-Id", " T_A "); code != 200 { t.Fatalf("normalized tenant rows: %d", code) }
}

func TestRepCannotAdmin(t *testing.T) {
    s := newTestServer(t)
    h := s.Routes()
    rr := do(t, h, uploadRequest(t, "/v1/admin/datasets/dealers/imports", "d.csv", dealersCSV), "X-Role", "rep")
    if rr.Code != 403 { t.Fatalf("rep upload: %d", rr.Code) }
    if code := getJSON(t, h, "/v1/admin/audit", nil, "X-Role", "rep"); code != 403 { t.Fatalf("rep audit: %d", code) }
    upload(t, h, "t_demo", "dealers", "d.csv", dealersCSV)
    if code := getJSON(t, h, "/v1/datasets/dealers/rows", nil, "X-Role", "rep", "X-Rep-Id", "r7"); code != 200 { t.Fatalf("rep read: %d", code) }

    rr = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/datasets/dealers/rows", nil), "Authorization", "Bearer t_demo:rep:r7")
    if rr.Code != 200 { t.Fatalf("rep token read: %d", rr.Code) }
    rr = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/admin/datasets/dealers/config", nil), "Authorization", "Bearer t_demo:rep:r7")
    if rr.Code != 403 { t.Fatalf("rep token admin: %d", rr.Code) }
}

func TestConfigValidation(t *testing.T) {
    s := newTestServer(t)
    h := s.Routes()
    cases := map[string]string{
        "unknown source":  `{"joins":[{"source_dataset":"nope","local_key":"a","source_key":"b","columns":[{"source_col":"x","as":"y"}]}]}`,
        "duplicate alias": `{"joins":[{"source_dataset":"inventory","local_key":"a","source_key":"b","columns":[{"source_col":"x","as":"y"},{"source_col":"z","as":"y"}]}]}`,
        "bad filter op":   `{"filters":[{"field":"region","op":"like"}]}`,
        "manual no field": `{"map":{"mode":"manual","latField":"lat"}}`,
        "ref out of range": `{"map":{"refLat":123}}`,
        "unknown field":   `{"colums":["a"]}`,
    }
    for name, body := range cases {
        if rr := putConfig(t, h, "t_a", "dealers", body); rr.Code != 400 { t.Errorf("%s: got %d", name, rr.Code) }
    }
    if rr := putConfig(t, h, "t_a", "dealers", `{"columns":["name"],"labels":{"name":"Händler"}}`); rr.Code != 200 { t.Fatalf("valid config: %d %s", rr.Code, rr.Body.String()) }
    var cfg struct {
        Columns []string `json:"columns"`
        UpdatedAt time.Time `json:"updatedAt"`
    }
    if code := getJSON(t, h, "/v1/admin/datasets/dealers/config", &cfg, "X-Tenant-Id", "t_a"); code != 200 { t.Fatalf("get config: %d", code) }
    if len(cfg.Columns) != 1 || cfg.Columns[0] != "name" { t.Fatalf("config = %+v", cfg) }
}

func TestSeedViewConfig(t *testing.T) {
    cfg := config.Default()
    cfg.Migrate = false
    seeded, err := config.Parse([]byte("views:\n  dealers:\n    groupBy: region\n"))
    if err != nil { t.Fatal(err) }
    cfg.Views = seeded.Views
    s, err := NewServerWithConfig(cfg)
    if err != nil { t.Fatal(err) }
    h := s.Routes()
    upload(t, h, "t_a", "dealers", "d.csv", dealersCSV)
    var gv struct{ Field string `json:"field"` }
    if code := getJSON(t, h, "/v1/datasets/dealers/groups", &gv, "X-Tenant-Id", "t_a"); code != 200 { t.Fatalf("groups: %d", code) }
    if gv.Field != "region" { t.Fatalf("field = %q", gv.Field) }
}

func TestUploadRejects(t *testing.T) {
    s := newTestServer(t)
    h := s.Routes()
    if rr := do(t, h, uploadRequest(t, "/v1/admin/datasets/dealers/imports", "report.pdf", "%PDF")); rr.Code != 415 { t.Fatalf("pdf: %d", rr.Code) }
    if rr := do(t, h, uploadRequest(t, "/v1/admin/datasets/dealers/imports", "empty.csv", "")); rr.Code != 400 { t.Fatalf("empty: %d", rr.Code) }
    req := httptest.NewRequest(http.MethodPost, "/v1/admin/datasets/dealers/imports", strings.NewReader("{}"))
    req.Header.Set("Content-Type", "application/json")
    if rr := do(t, h, req); rr.Code != 400 { t.Fatalf("no file: %d", rr.Code) }
    if rr := do(t, h, uploadRequest(t, "/v1/admin/datasets/nope/imports", "d.csv", dealersCSV)); rr.Code != 404 { t.Fatalf("unknown dataset: %d", rr.Code) }

    s.Config.MaxImportRows = 2
    if rr := do(t, h, uploadRequest(t, "/v1/admin/datasets/dealers/imports", "d.csv", dealersCSV)); rr.Code != 413 { t.Fatalf("too many rows: %d", rr.Code) }
}

func TestAuditLog(t *testing.T) {
    s := newTestServer(t)
    h := s.Routes()
    upload(t, h, "t_a", "dealers", "d.csv", dealersCSV)
    if rr := putConfig(t, h, "t_a", "dealers", `{"groupBy":"region"}`); rr.Code != 200 { t.Fatalf("put: %d", rr.Code) }
    var out struct {
        Items []struct{ Action, Dataset, Actor string } `json:"items"`
    }
    if code := getJSON(t, h, "/v1/admin/audit", &out, "X-Tenant-Id", "t_a"); code != 200 { t.Fatalf("audit: %d", code) }
    if len(out.Items) != 2 || out.Items[0].Action != "config.updated" || out.Items[1].Action != "import.created" { t.Fatalf("audit = %+v", out.Items) }
    if out.Items[0].Actor != "admin" || out.Items[0].Dataset != "dealers" { t.Fatalf("entry = %+v", out.Items[0]) }
    out.Items = nil
    if code := getJSON(t, h, "/v1/admin/audit", &out, "X-Tenant-Id", "t_b"); code != 200 || len(out.Items) != 0 { t.Fatalf("other tenant audit: %d %+v", code, out.Items) }
    if code := getJSON(t, h, "/v1/admin/audit?cursor=garbage", nil, "X-Tenant-Id", "t_a"); code != 400 { t.Fatalf("bad cursor: %d", code) }
}

// sseRecorder is a ResponseRecorder safe for concurrent reads while streaming.
type sseRecorder struct {
    mu   sync.Mutex
    rr   *httptest.ResponseRecorder
}

func (r *sseRecorder) Header() http.Header { return r.rr.Header() }
func (r *sseRecorder) WriteHeader(code int) { r.mu.Lock(); r.rr.WriteHeader(code); r.mu.Unlock() }
func (r *sseRecorder) Write(b []byte) (int, error) { r.mu.Lock(); defer r.mu.Unlock(); return r.rr.Write(b) }
func (r *sseRecorder) Flush() {}
func (r *sseRecorder) body() string { r.mu.Lock(); defer r.mu.Unlock(); return r.rr.Body.String() }

func waitFor(t *testing.T, what string, cond func() bool) {
    t.Helper()
    deadline := time.Now().Add(2 * time.Second)
    for !cond() {
        if time.Now().After(deadline) { t.Fatalf("timed out waiting for %s", what) }
        time.Sleep(5 * time.Millisecond)
    }
}

func TestDatasetEventsSSE(t *testing.T) {
    s := newTestServer(t)
    h := s.Routes()
    ctx, cancel := context.WithCancel(context.Background())
    rec := &sseRecorder{rr: httptest.NewRecorder()}
    req := httptest.NewRequest(http.MethodGet, "/v1/datasets/dealers/events/stream", nil).WithContext(ctx)
    req.Header.Set("X-Tenant-Id", "t_a")
    done := make(chan struct{})
    go func() { h.ServeHTTP(rec, req); close(done) }()
    waitFor(t, "heartbeat", func() bool { return strings.Contains(rec.body(), "event: heartbeat") })

    upload(t, h, "t_b", "dealers", "d.csv", dealersCSV)
    upload(t, h, "t_a", "dealers", "d.csv", dealersCSV)
    waitFor(t, "import.created", func() bool { return strings.Contains(rec.body(), "event: import.created") })
    cancel()
    <-done
    if n := strings.Count(rec.body(), "event: import.created"); n != 1 { t.Fatalf("got %d import events, want 1 (tenant scoped)", n) }
}

func TestWebSocketEvents(t *testing.T) {
    s := newTestServer(t)
    ts := httptest.NewServer(Instrument(s.Routes()))
    defer ts.Close()
    hdr := http.Header{}
    hdr.Set("X-Tenant-Id", "t_a")
    conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/ws", hdr)
    if err != nil { t.Fatalf("dial: %v", err) }
    defer func() { _ = conn.Close() }()
    _ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

    if err := conn.WriteJSON(wsMessage{Type: "subscribe", Dataset: "nope"}); err != nil { t.Fatal(err) }
    var msg wsMessage
    if err := conn.ReadJSON(&msg); err != nil || msg.Type != "error" { t.Fatalf("unknown dataset reply = %+v %v", msg, err) }

    if err := conn.WriteJSON(wsMessage{Type: "subscribe", Dataset: "dealers"}); err != nil { t.Fatal(err) }
    if err := conn.ReadJSON(&msg); err != nil || msg.Type != "subscribed" { t.Fatalf("subscribe reply = %+v %v", msg, err) }

    req := uploadRequest(t, ts.URL+"/v1/admin/datasets/dealers/imports", "d.csv", dealersCSV)
    req.RequestURI = ""
    req.Header.Set("X-Tenant-Id", "t_a")
    resp, err := http.DefaultClient.Do(req)
    if err != nil { t.Fatal(err) }
    _ = resp.Body.Close()
    if resp.StatusCode != http.StatusCreated { t.Fatalf("upload: %d", resp.StatusCode) }

    msg = wsMessage{}
    if err := conn.ReadJSON(&msg); err != nil { t.Fatalf("read event: %v", err) }
    if msg.Type != "event" || msg.Event != "import.created" || msg.Dataset != "dealers" { t.Fatalf("event = %+v", msg) }
    if rows, _ := msg.Data["rows"].(float64); rows != 3 { t.Fatalf("event rows = %v", msg.Data["rows"]) }
}

func TestRateLimitPerTenant(t *testing.T) {
    s := newTestServer(t)
    s.Config.RateRPS = 0.001
    s.Config.RateBurst = 1
    h := s.RateLimit(s.Routes())
    if rr := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil), "X-Tenant-Id", "t_a"); rr.Code != 200 { t.Fatalf("first: %d", rr.Code) }
    if rr := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil), "X-Tenant-Id", "t_a"); rr.Code != 429 { t.Fatalf("second: %d", rr.Code) }
    if rr := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil), "X-Tenant-Id", "t_b"); rr.Code != 200 { t.Fatalf("other tenant: %d", rr.Code) }
}

func TestRouteLabel(t *testing.T) {
    cases := map[string]string{
        "/v1/datasets/dealers/rows":           "/v1/datasets/{dataset}/rows",
        "/v1/datasets/backlog":                "/v1/datasets/{dataset}",
        "/v1/admin/datasets/inventory/config": "/v1/admin/datasets/{dataset}/config",
        "/healthz":                            "/healthz",
    }
    for in, want := range cases {
        if got := RouteLabel(in); got != want { t.Errorf("RouteLabel(%q) = %q, want %q", in, got, want) }
    }
}

func TestOpsEndpoints(t *testing.T) {
    s := newTestServer(t)
    h := Instrument(s.Routes())
    var spec struct{ Paths map[string]any `json:"paths"` }
    if code := getJSON(t, h, "/openapi.json", &spec); code != 200 { t.Fatalf("openapi: %d", code) }
    for _, p := range []string{"/v1/datasets/{dataset}/rows", "/v1/admin/datasets/{dataset}/imports", "/v1/ws"} {
        if _, ok := spec.Paths[p]; !ok { t.Errorf("openapi missing %s", p) }
    }
    var info struct{ Config map[string]any `json:"config"` }
    if code := getJSON(t, h, "/debug/info", &info); code != 200 { t.Fatalf("debug: %d", code) }
    if info.Config["STORE"] != "memory" { t.Fatalf("store = %v", info.Config["STORE"]) }
    rr := do(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
    if rr.Code != 200 || !strings.Contains(rr.Body.String(), "http_requests_total") { t.Fatalf("metrics: %d", rr.Code) }
}

func hs256Token(t *testing.T, secret string, claims map[string]any) string {
    t.Helper()
    enc := base64.RawURLEncoding
    hdr, _ := json.Marshal(map[string]any{"alg": "HS256", "typ": "JWT"})
    body, err := json.Marshal(claims)
    if err != nil { t.Fatal(err) }
    in := enc.EncodeToString(hdr) + "." + enc.EncodeToString(body)
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write([]byte(in))
    return in + "." + enc.EncodeToString(mac.Sum(nil))
}

func TestHMACModeRequiresToken(t *testing.T) {
    t.Setenv("AUTH_MODE", "hmac")
    t.Setenv("AUTH_HMAC_SECRET", "s3cret")
    s := newTestServer(t)
    h := s.Routes()

    rejected := [][]string{
        {"X-Tenant-Id", "victim_tenant"},
        {"Authorization", "Bearer forged.token.sig", "X-Tenant-Id", "victim_tenant"},
        {"Authorization", "Bearer victim_tenant:admin"},
        {"Authorization", "Bearer " + hs256Token(t, "wrong", map[string]any{"tenant": "victim_tenant", "role": "admin"})},
    }
    for _, hdrs := range rejected {
        rr := do(t, h, httptest.NewRequest(http.MethodGet, "/v1/admin/audit", nil), hdrs...)
        if rr.Code != http.StatusUnauthorized { t.Fatalf("%v: got %d, want 401", hdrs, rr.Code) }
        if rr.Header().Get("WWW-Authenticate") == "" { t.Fatalf("%v: missing WWW-Authenticate", hdrs) }
    }
    if code := getJSON(t, h, "/v1/datasets", nil); code != http.StatusUnauthorized { t.Fatalf("datasets without token: %d", code) }
    if code := getJSON(t, h, "/v1/datasets/dealers/rows", nil, "X-Role", "admin"); code != http.StatusUnauthorized { t.Fatalf("rows without token: %d", code) }
    if code := getJSON(t, h, "/v1/ws", nil, "X-Tenant-Id", "victim_tenant"); code != http.StatusUnauthorized { t.Fatalf("ws without token: %d", code) }
    if code := getJSON(t, h, "/healthz", nil); code != 200 { t.Fatalf("healthz: %d", code) }

    admin := "Bearer " + hs256Token(t, "s3cret", map[string]any{"tenant": "acme", "role": "admin"})
    var out struct{ Items []any `json:"items"` }
    if code := getJSON(t, h, "/v1/admin/audit", &out, "Authorization", admin, "X-Tenant-Id", "victim_tenant"); code != 200 { t.Fatalf("valid token: %d", code) }
    rep := "Bearer " + hs256Token(t, "s3cret", map[string]any{"tenant": "acme", "role": "rep", "sub": "r7"})
    if code := getJSON(t, h, "/v1/admin/audit", nil, "Authorization", rep, "X-Role", "admin"); code != http.StatusForbidden { t.Fatalf("rep token with admin header: %d", code) }
}

func TestConfigBodyLimit(t *testing.T) {
    s := newTestServer(t)
    h := s.Routes()
    body := `{"columns":["` + strings.Repeat("a", maxConfigBytes) + `"]}`
    if rr := putConfig(t, h, "t_a", "dealers", body); rr.Code != http.StatusRequestEntityTooLarge { t.Fatalf("oversized config: %d", rr.Code) }
    if rr := putConfig(t, h, "t_a", "dealers", `{"columns":["name"]}`); rr.Code != 200 { t.Fatalf("small config: %d", rr.Code) }
}
