// Package config loads service settings from an optional YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"salesops/internal/geo"
	"salesops/internal/ingest"
	"salesops/internal/join"
	"salesops/internal/model"
)

// Config is the effective service configuration. Environment variables
// override values read from CONFIG_FILE.
type Config struct {
	Port          string                      `yaml:"port"`
	DatabaseURL   string                      `yaml:"databaseUrl"`
	Migrate       bool                        `yaml:"migrate"`
	MigrationsDir string                      `yaml:"migrationsDir"`
	RedisURL      string                      `yaml:"redisUrl"`
	RateRPS       float64                     `yaml:"rateRps"`
	RateBurst     int                         `yaml:"rateBurst"`
	MaxImportRows int                         `yaml:"maxImportRows"`
	MaxUploadMB   int                         `yaml:"maxUploadMb"`
	Datasets      []string                    `yaml:"datasets"`
	Geo           geo.Config                  `yaml:"geo"`
	Join          join.Config                 `yaml:"join"`
	Views         map[string]model.ViewConfig `yaml:"views"` // seed view configs per dataset
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:          "8080",
		Migrate:       true,
		MigrationsDir: "db/migrations",
		MaxImportRows: ingest.MaxImportRows,
		MaxUploadMB:   32,
		Datasets:      append([]string(nil), model.DefaultDatasets...),
		Geo:           geo.DefaultConfig(),
		Join:          join.Config{MaxSourceRows: join.DefaultMaxSourceRows, ConflictPolicy: join.ConflictFirst},
	}
}

// Load reads CONFIG_FILE when set and applies environment overrides.
func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil { return Config{}, fmt.Errorf("config: %w", err) }
		if cfg, err = Parse(data); err != nil { return Config{}, fmt.Errorf("config %s: %w", path, err) }
	}
	if err := cfg.applyEnv(os.Getenv); err != nil { return Config{}, err }
	return cfg, nil
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil { return Config{}, err }
	if len(cfg.Datasets) == 0 { cfg.Datasets = append([]string(nil), model.DefaultDatasets...) }
	for ds, v := range cfg.Views {
		if err := join.Validate(v.Joins, cfg.Datasets); err != nil {
			return Config{}, fmt.Errorf("views.%s: %w", ds, err)
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" { c.Port = v }
	if v := getenv("DATABASE_URL"); v != "" { c.DatabaseURL = v }
	if v := getenv("DB_MIGRATE"); v != "" { c.Migrate = v != "false" }
	if v := getenv("REDIS_URL"); v != "" { c.RedisURL = v }
	if v := getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil { return fmt.Errorf("RATE_RPS: %w", err) }
		c.RateRPS = f
	}
	if v := getenv("RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil { return fmt.Errorf("RATE_BURST: %w", err) }
		c.RateBurst = n
	}
	if v := getenv("JOIN_MAX_SOURCE_ROWS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil { return fmt.Errorf("JOIN_MAX_SOURCE_ROWS: %w", err) }
		c.Join.MaxSourceRows = n
	}
	if v := getenv("JOIN_CONFLICT_POLICY"); v != "" { c.Join.ConflictPolicy = join.ConflictPolicy(strings.ToLower(v)) }
	return nil
}

// KnownDataset reports whether ds is served.
func (c Config) KnownDataset(ds string) bool {
	for _, d := range c.Datasets {
		if d == ds { return true }
	}
	return false
}
