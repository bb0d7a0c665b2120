package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"salesops/internal/model"
)

// queries holds the statements that differ between SQL backends.
type queries struct {
	insertImport   string
	insertRow      string
	latestImport   string
	listImports    string
	importExists   string
	importRows     string
	getConfig      string
	upsertConfig   string
	insertAudit    string
	listAudit      string
	listAuditAfter string
}

// SQL is a database/sql backed Store. Timestamps are stored as unix
// nanoseconds so both backends order them the same way.
type SQL struct {
	db      *sql.DB
	q       queries
	backend string
	now     func() time.Time
}

func newSQL(db *sql.DB, backend string, q queries) *SQL {
	return &SQL{db: db, q: q, backend: backend, now: func() time.Time { return time.Now().UTC() }}
}

// Backend reports "postgres" or "sqlite".
func (s *SQL) Backend() string { return s.backend }

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQL) Close() error { return s.db.Close() }

// MigrateDir executes every *.sql file in dir in lexical order.
func (s *SQL) MigrateDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil { return err }
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil { return err }
		if _, err := s.db.Exec(string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", filepath.Base(f), err)
		}
	}
	return nil
}

func (s *SQL) CreateImport(ctx context.Context, tenantID, dataset, fileName string, rows []map[string]any) (model.Import, error) {
	imp := model.Import{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Dataset:   dataset,
		FileName:  fileName,
		RowCount:  len(rows),
		CreatedAt: s.now(),
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil { return model.Import{}, err }
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.q.insertImport, imp.ID, tenantID, dataset, fileName, imp.RowCount, imp.CreatedAt.UnixNano()); err != nil {
		return model.Import{}, err
	}
	stmt, err := tx.PrepareContext(ctx, s.q.insertRow)
	if err != nil { return model.Import{}, err }
	defer stmt.Close()
	for i, r := range rows {
		b, err := json.Marshal(r)
		if err != nil { return model.Import{}, fmt.Errorf("row %d: %w", i, err) }
		if _, err := stmt.ExecContext(ctx, imp.ID, i, string(b)); err != nil { return model.Import{}, err }
	}
	if err := tx.Commit(); err != nil { return model.Import{}, err }
	return imp, nil
}

func scanImport(sc interface{ Scan(...any) error }) (model.Import, error) {
	var imp model.Import
	var created int64
	if err := sc.Scan(&imp.ID, &imp.TenantID, &imp.Dataset, &imp.FileName, &imp.RowCount, &created); err != nil {
		return model.Import{}, err
	}
	imp.CreatedAt = time.Unix(0, created).UTC()
	return imp, nil
}

func (s *SQL) LatestImport(ctx context.Context, tenantID, dataset string) (model.Import, error) {
	imp, err := scanImport(s.db.QueryRowContext(ctx, s.q.latestImport, tenantID, dataset))
	if errors.Is(err, sql.ErrNoRows) { return model.Import{}, ErrNotFound }
	return imp, err
}

func (s *SQL) ListImports(ctx context.Context, tenantID, dataset string, limit int) ([]model.Import, error) {
	if limit <= 0 { limit = 50 }
	rows, err := s.db.QueryContext(ctx, s.q.listImports, tenantID, dataset, limit)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []model.Import{}
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil { return nil, err }
		out = append(out, imp)
	}
	return out, rows.Err()
}

func (s *SQL) ImportRows(ctx context.Context, tenantID, importID string, offset, limit int) ([]model.Row, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.q.importExists, importID, tenantID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) { return nil, ErrNotFound }
	if err != nil { return nil, err }
	if offset < 0 { offset = 0 }
	if limit <= 0 { limit = math.MaxInt32 }
	rows, err := s.db.QueryContext(ctx, s.q.importRows, importID, limit, offset)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []model.Row{}
	for rows.Next() {
		var r model.Row
		var data string
		if err := rows.Scan(&r.Index, &data); err != nil { return nil, err }
		if err := json.Unmarshal([]byte(data), &r.Data); err != nil {
			return nil, fmt.Errorf("row %d: %w", r.Index, err)
		}
		if r.Data == nil { r.Data = map[string]any{} }
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQL) GetViewConfig(ctx context.Context, tenantID, dataset string) (model.ViewConfig, error) {
	var data string
	var updated int64
	err := s.db.QueryRowContext(ctx, s.q.getConfig, tenantID, dataset).Scan(&data, &updated)
	if errors.Is(err, sql.ErrNoRows) { return model.ViewConfig{}, ErrNotFound }
	if err != nil { return model.ViewConfig{}, err }
	var cfg model.ViewConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil { return model.ViewConfig{}, err }
	cfg.UpdatedAt = time.Unix(0, updated).UTC()
	return cfg, nil
}

func (s *SQL) SaveViewConfig(ctx context.Context, tenantID, dataset string, cfg model.ViewConfig) (model.ViewConfig, error) {
	cfg.UpdatedAt = s.now()
	b, err := json.Marshal(cfg)
	if err != nil { return model.ViewConfig{}, err }
	if _, err := s.db.ExecContext(ctx, s.q.upsertConfig, tenantID, dataset, string(b), cfg.UpdatedAt.UnixNano()); err != nil {
		return model.ViewConfig{}, err
	}
	return cfg, nil
}

func (s *SQL) AppendAudit(ctx context.Context, e model.AuditEntry) (model.AuditEntry, error) {
	if e.ID == "" { e.ID = newAuditID() }
	if e.CreatedAt.IsZero() { e.CreatedAt = s.now() }
	detail := "{}"
	if len(e.Detail) > 0 {
		b, err := json.Marshal(e.Detail)
		if err != nil { return model.AuditEntry{}, err }
		detail = string(b)
	}
	_, err := s.db.ExecContext(ctx, s.q.insertAudit, e.ID, e.TenantID, e.Actor, e.Action, e.Dataset, detail, e.CreatedAt.UnixNano())
	if err != nil { return model.AuditEntry{}, err }
	return e, nil
}

// ListAudit pages newest first; the cursor is the (created-at, id) of the last item.
func (s *SQL) ListAudit(ctx context.Context, tenantID, cursor string, limit int) ([]model.AuditEntry, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	var rows *sql.Rows
	var err error
	if cursor != "" {
		before, beforeID, perr := parseAuditCursor(cursor)
		if perr != nil { return nil, "", perr }
		rows, err = s.db.QueryContext(ctx, s.q.listAuditAfter, tenantID, before, beforeID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, s.q.listAudit, tenantID, limit)
	}
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []model.AuditEntry{}
	for rows.Next() {
		var e model.AuditEntry
		var detail string
		var created int64
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Actor, &e.Action, &e.Dataset, &detail, &created); err != nil { return nil, "", err }
		if strings.TrimSpace(detail) != "" && detail != "{}" {
			if err := json.Unmarshal([]byte(detail), &e.Detail); err != nil {
				return nil, "", fmt.Errorf("audit %s detail: %w", e.ID, err)
			}
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil { return nil, "", err }
	next := ""
	if len(out) == limit { next = auditCursor(out[len(out)-1]) }
	return out, next, nil
}
