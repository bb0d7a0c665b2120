package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

var postgresQueries = queries{
	insertImport: `INSERT INTO imports (id, tenant_id, dataset, file_name, row_count, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
	insertRow:    `INSERT INTO import_rows (import_id, row_index, row_data) VALUES ($1,$2,$3::jsonb)`,
	latestImport: `SELECT id, tenant_id, dataset, file_name, row_count, created_at FROM imports
		WHERE tenant_id=$1 AND dataset=$2 ORDER BY created_at DESC, id DESC LIMIT 1`,
	listImports: `SELECT id, tenant_id, dataset, file_name, row_count, created_at FROM imports
		WHERE tenant_id=$1 AND dataset=$2 ORDER BY created_at DESC, id DESC LIMIT $3`,
	importExists: `SELECT 1 FROM imports WHERE id=$1 AND tenant_id=$2`,
	importRows:   `SELECT row_index, row_data::text FROM import_rows WHERE import_id=$1 ORDER BY row_index LIMIT $2 OFFSET $3`,
	getConfig:    `SELECT config::text, updated_at FROM view_configs WHERE tenant_id=$1 AND dataset=$2`,
	upsertConfig: `INSERT INTO view_configs (tenant_id, dataset, config, updated_at) VALUES ($1,$2,$3::jsonb,$4)
		ON CONFLICT (tenant_id, dataset) DO UPDATE SET config=EXCLUDED.config, updated_at=EXCLUDED.updated_at`,
	insertAudit: `INSERT INTO audit_log (id, tenant_id, actor, action, dataset, detail, created_at) VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7)`,
	listAudit: `SELECT id, tenant_id, actor, action, dataset, detail::text, created_at FROM audit_log
		WHERE tenant_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`,
	listAuditAfter: `SELECT id, tenant_id, actor, action, dataset, detail::text, created_at FROM audit_log
		WHERE tenant_id=$1 AND (created_at, id) < ($2, $3) ORDER BY created_at DESC, id DESC LIMIT $4`,
}

// NewPostgres opens a Postgres store through the pgx database/sql driver.
// Run MigrateDir before first use.
func NewPostgres(dsn string) (*SQL, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil { return nil, err }
	db := stdlib.OpenDB(*cfg)
	db.SetMaxOpenConns(16)
	db.SetConnMaxIdleTime(5 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return newSQL(db, "postgres", postgresQueries), nil
}
