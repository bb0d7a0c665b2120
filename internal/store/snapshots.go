package store

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"salesops/internal/model"
)

// Snapshots resolves current dataset snapshots for the lifetime of one
// request. Repeated lookups of the same dataset or import hit the cache, so
// every join in a request sees the same snapshot.
type Snapshots struct {
	st Store

	mu     sync.Mutex
	latest map[string]model.Import // tenant|dataset; zero ID means no import
	rows   map[string][]model.Row  // import id|limit
}

func NewSnapshots(st Store) *Snapshots {
	return &Snapshots{st: st, latest: map[string]model.Import{}, rows: map[string][]model.Row{}}
}

// Latest returns the current import of dataset or ErrNotFound.
func (s *Snapshots) Latest(ctx context.Context, tenantID, dataset string) (model.Import, error) {
	k := dsKey(tenantID, dataset)
	s.mu.Lock()
	imp, ok := s.latest[k]
	s.mu.Unlock()
	if ok {
		if imp.ID == "" { return model.Import{}, ErrNotFound }
		return imp, nil
	}
	imp, err := s.st.LatestImport(ctx, tenantID, dataset)
	if err != nil && !errors.Is(err, ErrNotFound) { return model.Import{}, err }
	s.mu.Lock()
	s.latest[k] = imp
	s.mu.Unlock()
	if err != nil { return model.Import{}, err }
	return imp, nil
}

// LatestImportID returns "" when the dataset has never been imported.
func (s *Snapshots) LatestImportID(ctx context.Context, tenantID, dataset string) (string, error) {
	imp, err := s.Latest(ctx, tenantID, dataset)
	if errors.Is(err, ErrNotFound) { return "", nil }
	return imp.ID, err
}

// ImportRows returns up to limit rows of importID; limit <= 0 means all.
// The returned rows are shared and must not be mutated.
func (s *Snapshots) ImportRows(ctx context.Context, tenantID, importID string, limit int) ([]model.Row, error) {
	k := importID + "|" + strconv.Itoa(limit)
	s.mu.Lock()
	cached, ok := s.rows[k]
	s.mu.Unlock()
	if ok { return cached, nil }
	rows, err := s.st.ImportRows(ctx, tenantID, importID, 0, limit)
	if err != nil { return nil, err }
	s.mu.Lock()
	s.rows[k] = rows
	s.mu.Unlock()
	return rows, nil
}
