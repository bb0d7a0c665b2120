package store

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"salesops/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Imports
	CreateImport(ctx context.Context, tenantID, dataset, fileName string, rows []map[string]any) (model.Import, error)
	LatestImport(ctx context.Context, tenantID, dataset string) (model.Import, error)
	ListImports(ctx context.Context, tenantID, dataset string, limit int) ([]model.Import, error)
	ImportRows(ctx context.Context, tenantID, importID string, offset, limit int) ([]model.Row, error)

	// View configuration per dataset
	GetViewConfig(ctx context.Context, tenantID, dataset string) (model.ViewConfig, error)
	SaveViewConfig(ctx context.Context, tenantID, dataset string, cfg model.ViewConfig) (model.ViewConfig, error)

	// Admin audit log
	AppendAudit(ctx context.Context, e model.AuditEntry) (model.AuditEntry, error)
	ListAudit(ctx context.Context, tenantID, cursor string, limit int) ([]model.AuditEntry, string, error)
}

var ErrNotFound = errors.New("not found")

// ErrBadCursor is returned by ListAudit for cursors it did not issue.
var ErrBadCursor = errors.New("invalid cursor")

// auditCursor encodes the keyset position of the last entry on a page.
// Entries sort by created-at then id, both descending.
func auditCursor(e model.AuditEntry) string {
	return strconv.FormatInt(e.CreatedAt.UnixNano(), 10) + ":" + e.ID
}

func parseAuditCursor(c string) (int64, string, error) {
	nanos, id, ok := strings.Cut(c, ":")
	if !ok || id == "" { return 0, "", ErrBadCursor }
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil { return 0, "", ErrBadCursor }
	return n, id, nil
}

// newAuditID returns a time-ordered id so entries sharing a timestamp
// still list newest first.
func newAuditID() string {
	if id, err := uuid.NewV7(); err == nil { return id.String() }
	return uuid.New().String()
}
