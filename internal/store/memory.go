package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"salesops/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu      sync.Mutex
	imports map[string]model.Import      // id -> import
	byDS    map[string][]string          // tenant|dataset -> import ids, oldest first
	rows    map[string][]model.Row       // import id -> rows
	configs map[string]model.ViewConfig  // tenant|dataset -> config
	audit   map[string][]model.AuditEntry // tenant -> entries, oldest first
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		imports: map[string]model.Import{},
		byDS:    map[string][]string{},
		rows:    map[string][]model.Row{},
		configs: map[string]model.ViewConfig{},
		audit:   map[string][]model.AuditEntry{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func dsKey(tenantID, dataset string) string { return tenantID + "|" + dataset }

func (m *Memory) CreateImport(ctx context.Context, tenantID, dataset, fileName string, rows []map[string]any) (model.Import, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	imp := model.Import{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Dataset:   dataset,
		FileName:  fileName,
		RowCount:  len(rows),
		CreatedAt: m.now(),
	}
	stored := make([]model.Row, len(rows))
	for i, r := range rows {
		data := make(map[string]any, len(r))
		for k, v := range r { data[k] = v }
		stored[i] = model.Row{Index: i, Data: data}
	}
	m.imports[imp.ID] = imp
	m.rows[imp.ID] = stored
	k := dsKey(tenantID, dataset)
	m.byDS[k] = append(m.byDS[k], imp.ID)
	return imp, nil
}

func (m *Memory) LatestImport(ctx context.Context, tenantID, dataset string) (model.Import, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	ids := m.byDS[dsKey(tenantID, dataset)]
	if len(ids) == 0 { return model.Import{}, ErrNotFound }
	return m.imports[ids[len(ids)-1]], nil
}

func (m *Memory) ListImports(ctx context.Context, tenantID, dataset string, limit int) ([]model.Import, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	if limit <= 0 { limit = 50 }
	ids := m.byDS[dsKey(tenantID, dataset)]
	out := []model.Import{}
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.imports[ids[i]])
	}
	return out, nil
}

// ImportRows returns shared row values; callers must copy before mutating.
func (m *Memory) ImportRows(ctx context.Context, tenantID, importID string, offset, limit int) ([]model.Row, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	imp, ok := m.imports[importID]
	if !ok || imp.TenantID != tenantID { return nil, ErrNotFound }
	rows := m.rows[importID]
	if offset < 0 { offset = 0 }
	if offset >= len(rows) { return []model.Row{}, nil }
	end := len(rows)
	if limit > 0 && offset+limit < end { end = offset + limit }
	out := make([]model.Row, end-offset)
	copy(out, rows[offset:end])
	return out, nil
}

func (m *Memory) GetViewConfig(ctx context.Context, tenantID, dataset string) (model.ViewConfig, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	cfg, ok := m.configs[dsKey(tenantID, dataset)]
	if !ok { return model.ViewConfig{}, ErrNotFound }
	return cfg, nil
}

func (m *Memory) SaveViewConfig(ctx context.Context, tenantID, dataset string, cfg model.ViewConfig) (model.ViewConfig, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	cfg.UpdatedAt = m.now()
	m.configs[dsKey(tenantID, dataset)] = cfg
	return cfg, nil
}

func (m *Memory) AppendAudit(ctx context.Context, e model.AuditEntry) (model.AuditEntry, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	if e.ID == "" { e.ID = newAuditID() }
	if e.CreatedAt.IsZero() { e.CreatedAt = m.now() }
	m.audit[e.TenantID] = append(m.audit[e.TenantID], e)
	return e, nil
}

// ListAudit pages newest first; the cursor is the (created-at, id) of the last item.
func (m *Memory) ListAudit(ctx context.Context, tenantID, cursor string, limit int) ([]model.AuditEntry, string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	if limit <= 0 || limit > 500 { limit = 100 }
	entries := append([]model.AuditEntry(nil), m.audit[tenantID]...)
	sort.Slice(entries, func(i, j int) bool { return auditBefore(entries[j], entries[i]) })
	var after *model.AuditEntry
	if cursor != "" {
		n, id, err := parseAuditCursor(cursor)
		if err != nil { return nil, "", err }
		after = &model.AuditEntry{ID: id, CreatedAt: time.Unix(0, n)}
	}
	out := []model.AuditEntry{}
	for _, e := range entries {
		if after != nil && !auditBefore(e, *after) { continue }
		out = append(out, e)
		if len(out) == limit { break }
	}
	next := ""
	if len(out) == limit { next = auditCursor(out[len(out)-1]) }
	return out, next, nil
}

// auditBefore orders by (created-at, id) ascending.
func auditBefore(a, b model.AuditEntry) bool {
	an, bn := a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano()
	if an != bn { return an < bn }
	return a.ID < b.ID
}
