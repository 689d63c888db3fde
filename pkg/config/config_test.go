package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfigFile(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.Equal(t, float64(0), cfg.LLM.Temperature)

	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text:latest", cfg.Embedding.Model)

	assert.Equal(t, "local", cfg.Store.Provider)
	assert.Equal(t, "website_content", cfg.Store.Collection)
	assert.Equal(t, 4, cfg.Store.TopK)

	assert.Equal(t, 5, cfg.Crawler.MaxPages)
	assert.Equal(t, 10, cfg.Crawler.TimeoutSeconds)
	assert.Equal(t, 500, cfg.Crawler.DelayMillis)

	assert.Equal(t, 1000, cfg.Processor.ChunkSize)
	assert.Equal(t, 150, cfg.Processor.ChunkOverlap)
	assert.Equal(t, 10, cfg.Processor.MinContentLength)

	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
llm:
  model: test-model
  max_tokens: 512
store:
  provider: qdrant
  qdrant_host: qdrant.internal
crawler:
  max_pages: 12
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "test-model", cfg.LLM.Model)
	assert.Equal(t, 512, cfg.LLM.MaxTokens)
	assert.Equal(t, "qdrant", cfg.Store.Provider)
	assert.Equal(t, "qdrant.internal", cfg.Store.QdrantHost)
	assert.Equal(t, 12, cfg.Crawler.MaxPages)

	// Unset fields still get defaults.
	assert.Equal(t, 1000, cfg.Processor.ChunkSize)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "env-key")
	t.Setenv("VECTOR_STORE_PROVIDER", "pgvector")
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	cfg, err := LoadConfig(writeConfigFile(t, "llm:\n  api_key: file-key\n"))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "pgvector", cfg.Store.Provider)
	assert.Equal(t, "postgres://localhost/test", cfg.Store.PostgresURL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfigFile(t, "llm: [not a map"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "negative max tokens",
			mutate:  func(c *Config) { c.LLM.MaxTokens = -1 },
			wantErr: "llm.max_tokens",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.LLM.Temperature = 3.5 },
			wantErr: "llm.temperature",
		},
		{
			name:    "unknown embedding provider",
			mutate:  func(c *Config) { c.Embedding.Provider = "bedrock" },
			wantErr: "embedding.provider",
		},
		{
			name:    "unknown store provider",
			mutate:  func(c *Config) { c.Store.Provider = "redis" },
			wantErr: "store.provider",
		},
		{
			name:    "overlap not below chunk size",
			mutate:  func(c *Config) { c.Processor.ChunkOverlap = 1000 },
			wantErr: "processor.chunk_overlap",
		},
		{
			name:    "zero max pages",
			mutate:  func(c *Config) { c.Crawler.MaxPages = -5 },
			wantErr: "crawler.max_pages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfigFile(t, "{}"))
			require.NoError(t, err)
			tt.mutate(cfg)

			errs := cfg.Validate()
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}

			require.NotEmpty(t, errs)
			found := false
			for _, e := range errs {
				if e.Field == tt.wantErr {
					found = true
				}
			}
			assert.True(t, found, "expected a validation error on %s, got %v", tt.wantErr, errs)
		})
	}
}

func TestWarnings(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")

	cfg, err := LoadConfig(writeConfigFile(t, "{}"))
	require.NoError(t, err)

	warnings := cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "GROQ_API_KEY")

	cfg.LLM.APIKey = "set"
	assert.Empty(t, cfg.Warnings())

	cfg.Embedding.Provider = "openai"
	cfg.Store.Provider = "pgvector"
	warnings = cfg.Warnings()
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "EMBEDDING_API_KEY")
	assert.Contains(t, warnings[1], "DATABASE_URL")
}
