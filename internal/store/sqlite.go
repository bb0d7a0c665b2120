package store

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS imports (
    id          TEXT PRIMARY KEY,
    tenant_id   TEXT NOT NULL,
    dataset     TEXT NOT NULL,
    file_name   TEXT NOT NULL DEFAULT '',
    row_count   INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS imports_latest_idx ON imports (tenant_id, dataset, created_at DESC);
CREATE TABLE IF NOT EXISTS import_rows (
    import_id   TEXT NOT NULL REFERENCES imports(id) ON DELETE CASCADE,
    row_index   INTEGER NOT NULL,
    row_data    TEXT NOT NULL,
    PRIMARY KEY (import_id, row_index)
);
CREATE TABLE IF NOT EXISTS view_configs (
    tenant_id   TEXT NOT NULL,
    dataset     TEXT NOT NULL,
    config      TEXT NOT NULL,
    updated_at  INTEGER NOT NULL,
    PRIMARY KEY (tenant_id, dataset)
);
CREATE TABLE IF NOT EXISTS audit_log (
    id          TEXT PRIMARY KEY,
    tenant_id   TEXT NOT NULL,
    actor       TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL,
    dataset     TEXT NOT NULL DEFAULT '',
    detail      TEXT NOT NULL DEFAULT '{}',
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_log_tenant_idx ON audit_log (tenant_id, created_at DESC, id DESC);
`

var sqliteQueries = queries{
	insertImport: `INSERT INTO imports (id, tenant_id, dataset, file_name, row_count, created_at) VALUES (?,?,?,?,?,?)`,
	insertRow:    `INSERT INTO import_rows (import_id, row_index, row_data) VALUES (?,?,?)`,
	latestImport: `SELECT id, tenant_id, dataset, file_name, row_count, created_at FROM imports
		WHERE tenant_id=? AND dataset=? ORDER BY created_at DESC, id DESC LIMIT 1`,
	listImports: `SELECT id, tenant_id, dataset, file_name, row_count, created_at FROM imports
		WHERE tenant_id=? AND dataset=? ORDER BY created_at DESC, id DESC LIMIT ?`,
	importExists: `SELECT 1 FROM imports WHERE id=? AND tenant_id=?`,
	importRows:   `SELECT row_index, row_data FROM import_rows WHERE import_id=? ORDER BY row_index LIMIT ? OFFSET ?`,
	getConfig:    `SELECT config, updated_at FROM view_configs WHERE tenant_id=? AND dataset=?`,
	upsertConfig: `INSERT INTO view_configs (tenant_id, dataset, config, updated_at) VALUES (?,?,?,?)
		ON CONFLICT (tenant_id, dataset) DO UPDATE SET config=excluded.config, updated_at=excluded.updated_at`,
	insertAudit: `INSERT INTO audit_log (id, tenant_id, actor, action, dataset, detail, created_at) VALUES (?,?,?,?,?,?,?)`,
	listAudit: `SELECT id, tenant_id, actor, action, dataset, detail, created_at FROM audit_log
		WHERE tenant_id=? ORDER BY created_at DESC, id DESC LIMIT ?`,
	listAuditAfter: `SELECT id, tenant_id, actor, action, dataset, detail, created_at FROM audit_log
		WHERE tenant_id=? AND (created_at, id) < (?, ?) ORDER BY created_at DESC, id DESC LIMIT ?`,
}

// NewSQLite opens (and creates if needed) a single-file store using the
// pure-Go modernc driver. The schema is applied on open.
func NewSQLite(ctx context.Context, path string) (*SQL, error) {
	dsn := path
	pragmas := "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if strings.Contains(dsn, "?") {
		dsn += "&" + pragmas
	} else {
		dsn += "?" + pragmas
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil { return nil, err }
	// one writer keeps concurrent imports from tripping SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode=WAL;")
	return newSQL(db, "sqlite", sqliteQueries), nil
}
