package embedding

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"gdd-rag/internal/config"
	"gdd-rag/internal/models"
)

// NewEmbedder builds the embedding model selected by config. It is called once
// per process and the result shared by indexing and querying.
func NewEmbedder(cfg *config.EmbedderConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]any{
		"type":     cfg.Type,
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Msg("Creating embedder")

	switch cfg.Type {
	case config.EmbedderOllama:
		return NewOllamaEmbedder(cfg)
	case config.EmbedderOpenAI:
		return NewOpenAIEmbedder(cfg)
	case config.EmbedderHash:
		return NewHashEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder type %q", models.ErrConfig, cfg.Type)
	}
}

// NewOllamaEmbedder embeds through a local Ollama server, all-minilm by default.
func NewOllamaEmbedder(cfg *config.EmbedderConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init ollama client: %w", err)
	}
	return embeddings.NewEmbedder(llm, embeddings.WithBatchSize(cfg.BatchSize))
}

// NewOpenAIEmbedder embeds through any OpenAI-compatible /embeddings endpoint.
func NewOpenAIEmbedder(cfg *config.EmbedderConfig) (*embeddings.EmbedderImpl, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", models.ErrConfig, cfg.APIKeyEnv)
	}
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	return embeddings.NewEmbedder(llm, embeddings.WithBatchSize(cfg.BatchSize))
}

// Service guards calls into the embedding model: empty batches never reach it,
// every call has a deadline, and failures are reported as models.ErrEmbedding.
type Service struct {
	embedder embeddings.Embedder
	timeout  time.Duration
}

func NewService(embedder embeddings.Embedder, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Service{embedder: embedder, timeout: timeout}
}

// EmbedChunks returns one vector per text, all of the same dimension.
// An empty batch returns nil without calling the model.
func (s *Service) EmbedChunks(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: model returned %d vectors for %d texts", models.ErrEmbedding, len(vectors), len(texts))
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d", models.ErrEmbedding, i, len(v), dim)
		}
	}

	log.Debug().Int("texts", len(texts)).Int("dim", dim).Dur("took", time.Since(start)).Msg("Embedded chunks")
	return vectors, nil
}

// EmbedQuery embeds a single query string with the same model.
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", models.ErrEmbedding)
	}
	return vector, nil
}
