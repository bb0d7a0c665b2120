package model

import "time"

// Core domain types shared by the store, the enrichment engine and the API.

// Known datasets served by the dashboard.
const (
	DatasetDealers   = "dealers"
	DatasetBacklog   = "backlog"
	DatasetInventory = "inventory"
)

// DefaultDatasets is used when the config file does not list datasets.
var DefaultDatasets = []string{DatasetDealers, DatasetBacklog, DatasetInventory}

// Import is one upload snapshot of a dataset. Only the latest per dataset is current.
type Import struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Dataset   string    `json:"dataset"`
	FileName  string    `json:"fileName,omitempty"`
	RowCount  int       `json:"rowCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Row is one record of an import. Data values are string, float64, int64, bool or nil.
type Row struct {
	Index int            `json:"rowIndex"`
	Data  map[string]any `json:"rowData"`
}

// JoinColumn copies SourceCol of the matched source row into As.
type JoinColumn struct {
	SourceCol string `json:"source_col" yaml:"source_col"`
	As        string `json:"as" yaml:"as"`
	Label     string `json:"label,omitempty" yaml:"label,omitempty"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`
}

// JoinSpec enriches rows with columns of another dataset's current snapshot.
type JoinSpec struct {
	SourceDataset string       `json:"source_dataset" yaml:"source_dataset"`
	LocalKey      string       `json:"local_key" yaml:"local_key"`
	SourceKey     string       `json:"source_key" yaml:"source_key"`
	Columns       []JoinColumn `json:"columns" yaml:"columns"`
}

// FilterRule keeps rows whose Field satisfies Op against Value.
type FilterRule struct {
	Field string `json:"field" yaml:"field"`
	Op    string `json:"op" yaml:"op"` // eq, neq, contains, prefix, in, empty, not_empty, gt, lt
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// MapOptions controls how map markers are derived from rows.
type MapOptions struct {
	Mode       string   `json:"mode,omitempty" yaml:"mode,omitempty"` // auto, manual
	LatField   string   `json:"latField,omitempty" yaml:"latField,omitempty"`
	LngField   string   `json:"lngField,omitempty" yaml:"lngField,omitempty"`
	LabelField string   `json:"labelField,omitempty" yaml:"labelField,omitempty"`
	RefLat     *float64 `json:"refLat,omitempty" yaml:"refLat,omitempty"`
	RefLng     *float64 `json:"refLng,omitempty" yaml:"refLng,omitempty"`
}

// CardOptions controls the card view.
type CardOptions struct {
	TitleField    string   `json:"titleField,omitempty" yaml:"titleField,omitempty"`
	SubtitleField string   `json:"subtitleField,omitempty" yaml:"subtitleField,omitempty"`
	Fields        []string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// ViewConfig is the per-dataset display configuration maintained by admins.
type ViewConfig struct {
	Columns   []string          `json:"columns,omitempty" yaml:"columns,omitempty"`
	Labels    map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Types     map[string]string `json:"types,omitempty" yaml:"types,omitempty"`
	Joins     []JoinSpec        `json:"joins,omitempty" yaml:"joins,omitempty"`
	Map       MapOptions        `json:"map,omitempty" yaml:"map,omitempty"`
	Cards     CardOptions       `json:"cards,omitempty" yaml:"cards,omitempty"`
	GroupBy   string            `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`
	Filters   []FilterRule      `json:"filters,omitempty" yaml:"filters,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty" yaml:"-"`
}

// AuditEntry records an admin action.
type AuditEntry struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenantId"`
	Actor     string         `json:"actor,omitempty"`
	Action    string         `json:"action"` // import.created, config.updated
	Dataset   string         `json:"dataset,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
