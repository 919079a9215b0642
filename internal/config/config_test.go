package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 5, cfg.Ingest.WarnSizeMB)
	assert.Equal(t, 10, cfg.Ingest.MaxSizeMB)
	assert.Equal(t, int64(10<<20), cfg.Ingest.MaxBytes())
	assert.Equal(t, 2.0, cfg.Processing.WeightAdjustment)
	assert.Equal(t, "ShopifyCSV-{name}.csv", cfg.Output.FileNameFormat)
	assert.Equal(t, "none", cfg.Semantic.Provider)
	assert.Equal(t, 30*time.Second, cfg.Semantic.Timeout)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Store.FreeLimit)
	assert.Equal(t, []StaticField{{Field: "Status", Value: "draft"}}, cfg.StaticFields)
	assert.Equal(t, "Brand Name", cfg.Derive.Brand)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
ingest:
  chunk_size: 250
  max_size_mb: 50
processing:
  brand_filter: Acme
  weight_adjustment: 0
  nationwide_shipping: true
semantic:
  provider: http
  endpoint: https://example.test/ai-field-mapping
  timeout: 5s
field_rules:
  - field: Variant SKU
    actions:
      - type: uppercase
      - type: prepend_string
        value: "AC-"
static_fields:
  - field: Variant Inventory Policy
    value: deny
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Ingest.ChunkSize)
	assert.Equal(t, 50, cfg.Ingest.MaxSizeMB)
	assert.Equal(t, "Acme", cfg.Processing.BrandFilter)
	assert.Equal(t, 0.0, cfg.Processing.WeightAdjustment, "explicit zero is kept")
	assert.True(t, cfg.Processing.NationwideShipping)
	assert.Equal(t, 5*time.Second, cfg.Semantic.Timeout)
	require.Len(t, cfg.FieldRules, 1)
	assert.Equal(t, "AC-", cfg.FieldRules[0].Actions[1].Value)
	assert.Equal(t, []StaticField{{Field: "Variant Inventory Policy", Value: "deny"}}, cfg.StaticFields)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"max size too big", "ingest:\n  max_size_mb: 80\n", "max_size_mb"},
		{"warn above max", "ingest:\n  warn_size_mb: 20\n  max_size_mb: 10\n", "warn_size_mb"},
		{"http without endpoint", "semantic:\n  provider: http\n", "semantic.endpoint"},
		{"unknown provider", "semantic:\n  provider: openai\n", "semantic.provider"},
		{"postgres without dsn", "store:\n  driver: postgres\n", "store.dsn"},
		{"unknown action", "field_rules:\n  - field: Title\n    actions:\n      - type: explode\n", "unknown type"},
		{"archive without bucket", "archive:\n  enabled: true\n", "archive.bucket"},
		{"bad output format", "output:\n  format: xml\n", "output.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadStoreDSN(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"sqlite gets a default file", "store:\n  driver: sqlite\n", "mapper.db"},
		{"postgres keeps its dsn", "store:\n  driver: postgres\n  dsn: postgres://localhost/mapper\n", "postgres://localhost/mapper"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, "config.yaml", tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Store.DSN)
		})
	}

	t.Run("postgres dsn from the environment", func(t *testing.T) {
		t.Setenv("MAPPER_DATABASE_URL", "postgres://env/mapper")
		cfg, err := Load(writeFile(t, "config.yaml", "store:\n  driver: postgres\n"))
		require.NoError(t, err)
		assert.Equal(t, "postgres://env/mapper", cfg.Store.DSN)
	})
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "config.yaml", "ingest: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MAPPER_MAX_SIZE_MB", "25")
	t.Setenv("MAPPER_WEIGHT_ADJUSTMENT", "1.5")
	t.Setenv("MAPPER_NATIONWIDE_SHIPPING", "true")
	t.Setenv("MAPPER_SEMANTIC_TIMEOUT", "2s")
	t.Setenv("MAPPER_GEMINI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "alt-key")
	t.Setenv("MAPPER_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Ingest.MaxSizeMB)
	assert.Equal(t, 1.5, cfg.Processing.WeightAdjustment)
	assert.True(t, cfg.Processing.NationwideShipping)
	assert.Equal(t, 2*time.Second, cfg.Semantic.Timeout)
	assert.Equal(t, "alt-key", cfg.Semantic.APIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyEnvInvalid(t *testing.T) {
	t.Setenv("MAPPER_CHUNK_SIZE", "many")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "MAPPER_CHUNK_SIZE")
}

func TestLoadEnv(t *testing.T) {
	path := writeFile(t, ".env", "MAPPER_TEST_ONLY_VALUE=from-file\n")
	t.Setenv("MAPPER_TEST_ONLY_VALUE", "")
	require.NoError(t, os.Unsetenv("MAPPER_TEST_ONLY_VALUE"))

	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("MAPPER_TEST_ONLY_VALUE"))
}
