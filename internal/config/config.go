package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gdd-rag/internal/chunker"
	"gdd-rag/internal/models"
)

const (
	EmbedderOllama = "ollama"
	EmbedderOpenAI = "openai"
	EmbedderHash   = "hash"

	BackendMemory  = "memory"
	BackendChromem = "chromem"
)

type Config struct {
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	LLM       LLMConfig       `yaml:"llm"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// ChunkerConfig sizes the sliding word window.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// EmbedderConfig selects the embedding model. The same instance embeds chunks and queries.
type EmbedderConfig struct {
	Type      string        `yaml:"type"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Dimension int           `yaml:"dimension"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// RetrievalConfig controls search. MinSimilarity nil means no floor is applied.
type RetrievalConfig struct {
	Backend       string   `yaml:"backend"`
	TopK          int      `yaml:"top_k"`
	MinSimilarity *float64 `yaml:"min_similarity"`
}

type LLMConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads a YAML config. A missing file yields defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = chunker.DefaultChunkSize
		if cfg.Chunker.Overlap == 0 {
			cfg.Chunker.Overlap = chunker.DefaultOverlap
		}
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = EmbedderOllama
	}
	switch cfg.Embedder.Type {
	case EmbedderOllama:
		if cfg.Embedder.BaseURL == "" {
			cfg.Embedder.BaseURL = "http://localhost:11434"
		}
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "all-minilm"
		}
	case EmbedderOpenAI:
		if cfg.Embedder.BaseURL == "" {
			cfg.Embedder.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.Model == "" {
			cfg.Embedder.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.APIKeyEnv == "" {
			cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
		}
	case EmbedderHash:
		if cfg.Embedder.Dimension == 0 {
			cfg.Embedder.Dimension = 384
		}
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	if cfg.Embedder.Timeout == 0 {
		cfg.Embedder.Timeout = 60 * time.Second
	}

	if cfg.Retrieval.Backend == "" {
		cfg.Retrieval.Backend = BackendMemory
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama-3.1-8b-instant"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "GROQ_API_KEY"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 3 * time.Minute
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "gdd-rag.log"
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Chunker.Overlap < 0 {
		return fmt.Errorf("%w: chunker.overlap must be >= 0, got %d", models.ErrConfig, c.Chunker.Overlap)
	}
	if c.Chunker.ChunkSize <= c.Chunker.Overlap {
		return fmt.Errorf("%w: chunker.chunk_size (%d) must be greater than chunker.overlap (%d)",
			models.ErrConfig, c.Chunker.ChunkSize, c.Chunker.Overlap)
	}
	switch c.Embedder.Type {
	case EmbedderOllama, EmbedderOpenAI:
	case EmbedderHash:
		if c.Embedder.Dimension <= 0 {
			return fmt.Errorf("%w: embedder.dimension must be positive", models.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown embedder type %q", models.ErrConfig, c.Embedder.Type)
	}
	switch c.Retrieval.Backend {
	case BackendMemory, BackendChromem:
	default:
		return fmt.Errorf("%w: unknown retrieval backend %q", models.ErrConfig, c.Retrieval.Backend)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval.top_k must be positive", models.ErrConfig)
	}
	if m := c.Retrieval.MinSimilarity; m != nil && (*m < -1 || *m > 1) {
		return fmt.Errorf("%w: retrieval.min_similarity must be within [-1, 1]", models.ErrConfig)
	}
	return nil
}
