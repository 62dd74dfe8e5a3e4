package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"gdd-rag/internal/models"
)

// Generator produces an answer to question grounded in context.
type Generator interface {
	Generate(ctx context.Context, question, context string) (string, error)
}

type RAG struct {
	index     *Index
	generator Generator
	topK      int
}

// NewRAG combines retrieval with answer generation. generator may be nil when
// no LLM credential is configured; Query then reports models.ErrGeneration.
func NewRAG(index *Index, generator Generator, topK int) *RAG {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &RAG{index: index, generator: generator, topK: topK}
}

func (r *RAG) Index() *Index { return r.index }

func (r *RAG) TopK() int { return r.topK }

// Query retrieves context for question and asks the LLM. When retrieval
// succeeds but generation fails, the returned Answer still carries the context
// and sources alongside the error.
func (r *RAG) Query(ctx context.Context, question string) (*models.Answer, error) {
	start := time.Now()
	contextText, results, err := r.index.BuildContext(ctx, question, r.topK)
	if err != nil {
		return nil, err
	}

	answer := &models.Answer{
		Question: question,
		Context:  contextText,
		Sources:  results,
	}
	if len(results) == 0 {
		log.Info().Str("question", question).Msg("No relevant context, answering with fallback")
		answer.Answer = models.FallbackAnswer
		return answer, nil
	}
	if r.generator == nil {
		return answer, fmt.Errorf("%w: %w: no language model configured", models.ErrGeneration, models.ErrConfig)
	}

	text, err := r.generator.Generate(ctx, question, contextText)
	if err != nil {
		log.Error().Err(err).Msg("Answer generation failed")
		return answer, err
	}
	answer.Answer = text

	log.Info().
		Int("sources", len(results)).
		Dur("took", time.Since(start)).
		Msg("Answered question")
	return answer, nil
}
