// =============================================================================
// Inventory CSV Mapper - Configuration Module
// =============================================================================
//
// This module loads the application configuration from a YAML file and the
// environment.
//
// LOAD ORDER:
//   1. Built-in defaults (Default)
//   2. config.yaml, if present (values override defaults)
//   3. .env, if present (loaded into the process environment)
//   4. MAPPER_* environment variables (override everything above)
//   5. Validation
//
// The processing section is also the per-file Processing Config that the
// HTTP API and saved mappings carry around as JSON.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "config.yaml"

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the full application configuration.
type Config struct {
	Output       OutputConfig     `yaml:"output"`
	Ingest       IngestConfig     `yaml:"ingest"`
	Processing   ProcessingConfig `yaml:"processing"`
	Derive       DeriveSources    `yaml:"derive"`
	FieldRules   []FieldRule      `yaml:"field_rules"`
	StaticFields []StaticField    `yaml:"static_fields"`
	Semantic     SemanticConfig   `yaml:"semantic"`
	Store        StoreConfig      `yaml:"store"`
	Archive      ArchiveConfig    `yaml:"archive"`
	Server       ServerConfig     `yaml:"server"`
	Logging      LoggingConfig    `yaml:"logging"`
}

// OutputConfig controls where converted files are written.
type OutputConfig struct {
	// Dir is the directory for output files when no explicit path is given.
	// Default: "./output"
	Dir string `yaml:"dir" env:"MAPPER_OUTPUT_DIR"`

	// FileNameFormat defines the output file name.
	// Placeholders:
	//   {name}      - Input base name without extension
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	// Default: "ShopifyCSV-{name}.csv"
	FileNameFormat string `yaml:"file_name_format" env:"MAPPER_OUTPUT_FORMAT_NAME"`

	// Format forces "csv" or "xlsx". Empty means: follow the output extension.
	Format string `yaml:"format" env:"MAPPER_OUTPUT_FORMAT"`
}

// IngestConfig controls chunking and size limits.
type IngestConfig struct {
	// ChunkSize is the number of rows per chunk. Default: 1000
	ChunkSize int `yaml:"chunk_size" env:"MAPPER_CHUNK_SIZE"`

	// WarnSizeMB is the size above which an advisory is shown. Default: 5
	WarnSizeMB int `yaml:"warn_size_mb" env:"MAPPER_WARN_SIZE_MB"`

	// MaxSizeMB is the hard limit. Must be within 1..50. Default: 10
	MaxSizeMB int `yaml:"max_size_mb" env:"MAPPER_MAX_SIZE_MB"`
}

// WarnBytes returns WarnSizeMB in bytes.
func (c IngestConfig) WarnBytes() int64 { return int64(c.WarnSizeMB) << 20 }

// MaxBytes returns MaxSizeMB in bytes.
func (c IngestConfig) MaxBytes() int64 { return int64(c.MaxSizeMB) << 20 }

// ProcessingConfig holds the user-tunable options of one conversion.
type ProcessingConfig struct {
	// BrandFilter keeps only rows whose brand column equals this value.
	// Empty disables filtering.
	BrandFilter string `yaml:"brand_filter" json:"brandFilter" env:"MAPPER_BRAND_FILTER"`

	// WeightAdjustment is added to the source weight (lb) before rounding up.
	// Default: 2.0
	WeightAdjustment float64 `yaml:"weight_adjustment" json:"weightAdjustment" env:"MAPPER_WEIGHT_ADJUSTMENT"`

	// NationwideShipping appends "Nationwide Shipping" to SEO descriptions.
	NationwideShipping bool `yaml:"nationwide_shipping" json:"nationwideShipping" env:"MAPPER_NATIONWIDE_SHIPPING"`
}

// DefaultProcessing returns the default processing options.
func DefaultProcessing() ProcessingConfig {
	return ProcessingConfig{WeightAdjustment: 2.0}
}

// DeriveSources names the source columns that derived fields read.
// A derivation whose source column is absent from the file is skipped.
type DeriveSources struct {
	// HandleColumns are joined with "-" and slugged into the Handle.
	HandleColumns []string `yaml:"handle_columns"`
	Weight        string   `yaml:"weight"`
	Brand         string   `yaml:"brand"`
	Images        string   `yaml:"images"`
	Description   string   `yaml:"description"`
	Bullets       string   `yaml:"bullets"`
	Length        string   `yaml:"length"`
	Width         string   `yaml:"width"`
	Height        string   `yaml:"height"`
	Barcode       string   `yaml:"barcode"`
	Availability  string   `yaml:"availability"`

	// PriceColumns fill Variant Price: the first numeric value wins, else
	// the last column's value is used.
	PriceColumns []string `yaml:"price_columns"`
}

// DefaultDeriveSources returns the column names of the supplier feed the
// tool was first built for.
func DefaultDeriveSources() DeriveSources {
	return DeriveSources{
		HandleColumns: []string{"Short Item No", "Supplier Model"},
		Weight:        "Weight",
		Brand:         "Brand Name",
		Images:        "Images",
		Description:   "Item Desc Long",
		Bullets:       "Bullets",
		Length:        "Length",
		Width:         "Width",
		Height:        "Height",
		Barcode:       "Barcode",
		Availability:  "Availability",
		PriceColumns:  []string{"Map Price", "List Price"},
	}
}

// =============================================================================
// FIELD RULES
// =============================================================================

// FieldRule defines value transformations for one catalog field.
type FieldRule struct {
	// Field is the catalog field name, e.g. "Variant SKU".
	Field string `yaml:"field"`

	// Actions are applied in order.
	Actions []RuleAction `yaml:"actions"`
}

// RuleAction is a single value transformation.
type RuleAction struct {
	// Type is one of:
	//   - "prepend_string"       : Value is prepended
	//   - "append_string"        : Value is appended
	//   - "trim"                 : Surrounding whitespace is removed
	//   - "uppercase"            : Convert to uppercase
	//   - "lowercase"            : Convert to lowercase
	//   - "replace"              : Find is replaced with Value
	//   - "regex_replace"        : Pattern Find is replaced with Value
	//   - "format_number"        : Value is the number of decimal places
	//   - "if_empty_use_default" : Value is used when the field is empty
	//   - "if_empty_use_field"   : Catalog field Value is used when empty
	//   - "lookup"               : Value is replaced through LookupTable
	Type string `yaml:"type"`

	Value string `yaml:"value"`

	// Find is used by "replace" and "regex_replace".
	Find string `yaml:"find,omitempty"`

	// LookupTable is used by "lookup".
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// StaticField is a constant value for a catalog field that is still empty
// after mapping and derivation.
type StaticField struct {
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

// =============================================================================
// SERVICES
// =============================================================================

// SemanticConfig configures the optional semantic-mapping service.
type SemanticConfig struct {
	// Provider is "none", "http" or "gemini". Default: "none"
	Provider string `yaml:"provider" env:"MAPPER_SEMANTIC_PROVIDER"`

	// Endpoint is the mapping function URL for the "http" provider.
	Endpoint string `yaml:"endpoint" env:"MAPPER_SEMANTIC_ENDPOINT"`

	// Model is the Gemini model name.
	Model string `yaml:"model" env:"MAPPER_GEMINI_MODEL"`

	// APIKey authenticates against the provider.
	APIKey string `yaml:"api_key" env:"MAPPER_GEMINI_API_KEY" envAlt:"GEMINI_API_KEY"`

	// Timeout bounds the single mapping request. Default: 30s
	Timeout time.Duration `yaml:"timeout" env:"MAPPER_SEMANTIC_TIMEOUT"`
}

// StoreConfig selects the saved-mapping backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres". Default: "sqlite"
	Driver string `yaml:"driver" env:"MAPPER_STORE_DRIVER"`

	// DSN is the SQLite file path or the Postgres connection URL.
	// Default: "mapper.db"
	DSN string `yaml:"dsn" env:"MAPPER_DATABASE_URL" envAlt:"DATABASE_URL"`

	// FreeLimit is the number of saved mappings a user may keep. Default: 3
	FreeLimit int `yaml:"free_limit" env:"MAPPER_FREE_LIMIT"`
}

// ArchiveConfig configures raw-file upload to S3 compatible storage.
type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled" env:"MAPPER_ARCHIVE_ENABLED"`
	Bucket   string `yaml:"bucket" env:"MAPPER_ARCHIVE_BUCKET"`
	Prefix   string `yaml:"prefix" env:"MAPPER_ARCHIVE_PREFIX"`
	Endpoint string `yaml:"endpoint" env:"MAPPER_ARCHIVE_ENDPOINT"`
	Region   string `yaml:"region" env:"MAPPER_ARCHIVE_REGION" envAlt:"AWS_REGION"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address. Default: ":8080"
	Addr         string        `yaml:"addr" env:"MAPPER_SERVER_ADDR"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"MAPPER_SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"MAPPER_SERVER_WRITE_TIMEOUT"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error". Default: "info"
	Level string `yaml:"level" env:"MAPPER_LOG_LEVEL"`

	// Format is "text" or "json". Default: "text"
	Format string `yaml:"format" env:"MAPPER_LOG_FORMAT"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	cfg := preset()
	applyDefaults(cfg)
	return cfg
}

// preset holds the defaults that a config file replaces as a whole. Scalar
// defaults are filled by applyDefaults once the file and the environment
// have been read, so that they can depend on other settings.
func preset() *Config {
	return &Config{
		Processing:   DefaultProcessing(),
		Derive:       DefaultDeriveSources(),
		StaticFields: []StaticField{{Field: "Status", Value: "draft"}},
	}
}

// Load reads the configuration from path, then applies the environment.
//
// PARAMETERS:
//   - path: The YAML file. A missing file is not an error; defaults are used.
//
// RETURNS:
//   - The validated configuration.
//   - An error if the file cannot be parsed or validation fails.
func Load(path string) (*Config, error) {
	cfg := preset()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "./output"
	}
	if cfg.Output.FileNameFormat == "" {
		cfg.Output.FileNameFormat = "ShopifyCSV-{name}.csv"
	}
	if cfg.Ingest.ChunkSize <= 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.WarnSizeMB <= 0 {
		cfg.Ingest.WarnSizeMB = 5
	}
	if cfg.Ingest.MaxSizeMB == 0 {
		cfg.Ingest.MaxSizeMB = 10
	}
	if cfg.Semantic.Provider == "" {
		cfg.Semantic.Provider = "none"
	}
	if cfg.Semantic.Timeout <= 0 {
		cfg.Semantic.Timeout = 30 * time.Second
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.DSN == "" && cfg.Store.Driver == "sqlite" {
		cfg.Store.DSN = "mapper.db"
	}
	if cfg.Store.FreeLimit == 0 {
		cfg.Store.FreeLimit = 3
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that the configuration is usable. It reports every
// problem found, not just the first.
func (c *Config) Validate() error {
	var errs []string

	if c.Ingest.MaxSizeMB < 1 || c.Ingest.MaxSizeMB > 50 {
		errs = append(errs, fmt.Sprintf("ingest.max_size_mb (%d) must be within 1..50", c.Ingest.MaxSizeMB))
	}
	if c.Ingest.WarnSizeMB > c.Ingest.MaxSizeMB {
		errs = append(errs, fmt.Sprintf("ingest.warn_size_mb (%d) must not exceed max_size_mb (%d)",
			c.Ingest.WarnSizeMB, c.Ingest.MaxSizeMB))
	}
	switch strings.ToLower(c.Output.Format) {
	case "", "csv", "xlsx":
	default:
		errs = append(errs, fmt.Sprintf("output.format %q must be csv or xlsx", c.Output.Format))
	}
	switch strings.ToLower(c.Semantic.Provider) {
	case "none":
	case "http":
		if c.Semantic.Endpoint == "" {
			errs = append(errs, "semantic.endpoint is required for the http provider")
		}
	case "gemini":
	default:
		errs = append(errs, fmt.Sprintf("semantic.provider %q must be none, http or gemini", c.Semantic.Provider))
	}
	switch strings.ToLower(c.Store.Driver) {
	case "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, "store.dsn is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.FreeLimit < 0 {
		errs = append(errs, "store.free_limit must be non-negative")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		errs = append(errs, "archive.bucket is required when archive is enabled")
	}
	for i, r := range c.FieldRules {
		if r.Field == "" {
			errs = append(errs, fmt.Sprintf("field_rules[%d].field is required", i))
		}
		for j, a := range r.Actions {
			if !knownActions[a.Type] {
				errs = append(errs, fmt.Sprintf("field_rules[%d].actions[%d]: unknown type %q", i, j, a.Type))
			}
		}
	}
	for i, s := range c.StaticFields {
		if s.Field == "" {
			errs = append(errs, fmt.Sprintf("static_fields[%d].field is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

var knownActions = map[string]bool{
	"prepend_string":       true,
	"append_string":        true,
	"trim":                 true,
	"uppercase":            true,
	"lowercase":            true,
	"replace":              true,
	"regex_replace":        true,
	"format_number":        true,
	"if_empty_use_default": true,
	"if_empty_use_field":   true,
	"lookup":               true,
}
