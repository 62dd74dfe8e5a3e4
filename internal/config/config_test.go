package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdd-rag/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 600, cfg.Chunker.ChunkSize)
	assert.Equal(t, 100, cfg.Chunker.Overlap)
	assert.Equal(t, EmbedderOllama, cfg.Embedder.Type)
	assert.Equal(t, "all-minilm", cfg.Embedder.Model)
	assert.Equal(t, BackendMemory, cfg.Retrieval.Backend)
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.Nil(t, cfg.Retrieval.MinSimilarity)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.Equal(t, "GROQ_API_KEY", cfg.LLM.APIKeyEnv)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
chunker:
  chunk_size: 200
  overlap: 50
embedder:
  type: hash
  dimension: 128
  timeout: 5s
retrieval:
  backend: chromem
  top_k: 6
  min_similarity: 0.3
llm:
  timeout: 10s
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Chunker.ChunkSize)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, EmbedderHash, cfg.Embedder.Type)
	assert.Equal(t, 128, cfg.Embedder.Dimension)
	assert.Equal(t, 5*time.Second, cfg.Embedder.Timeout)
	assert.Equal(t, BackendChromem, cfg.Retrieval.Backend)
	assert.Equal(t, 6, cfg.Retrieval.TopK)
	require.NotNil(t, cfg.Retrieval.MinSimilarity)
	assert.InDelta(t, 0.3, *cfg.Retrieval.MinSimilarity, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.LLM.Timeout)
}

func TestLoadConfig_ZeroOverlapKept(t *testing.T) {
	path := writeConfig(t, "chunker:\n  chunk_size: 100\n  overlap: 0\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Chunker.Overlap)
}

func TestValidate(t *testing.T) {
	tooHigh := 1.5

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap equals chunk size", func(c *Config) { c.Chunker.ChunkSize, c.Chunker.Overlap = 100, 100 }},
		{"overlap above chunk size", func(c *Config) { c.Chunker.ChunkSize, c.Chunker.Overlap = 50, 100 }},
		{"negative overlap", func(c *Config) { c.Chunker.Overlap = -1 }},
		{"unknown embedder", func(c *Config) { c.Embedder.Type = "word2vec" }},
		{"unknown backend", func(c *Config) { c.Retrieval.Backend = "faiss" }},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"floor out of range", func(c *Config) { c.Retrieval.MinSimilarity = &tooHigh }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, models.ErrConfig)
		})
	}
}

func TestLoadConfig_InvalidFileRejected(t *testing.T) {
	path := writeConfig(t, "chunker:\n  chunk_size: 100\n  overlap: 100\n")
	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, models.ErrConfig)
}
