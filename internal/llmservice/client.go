package llmservice

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"gdd-rag/internal/config"
	"gdd-rag/internal/models"
)

// Generator answers questions from retrieved context with a single chat completion.
type Generator struct {
	llm     llms.Model
	model   string
	timeout time.Duration
}

// NewGenerator connects to the OpenAI-compatible endpoint in cfg (Groq by
// default). The API key is read from the env var named by cfg.APIKeyEnv.
func NewGenerator(cfg *config.LLMConfig) (*Generator, error) {
	log.Debug().Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("Creating LLM client")

	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", models.ErrConfig, cfg.APIKeyEnv)
	}
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: init llm client: %v", models.ErrConfig, err)
	}
	return NewGeneratorWithModel(llm, cfg.Model, cfg.Timeout), nil
}

func NewGeneratorWithModel(llm llms.Model, model string, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Generator{llm: llm, model: model, timeout: timeout}
}

// BuildPrompt fills the answer template.
func BuildPrompt(question, contextText string) string {
	return fmt.Sprintf(models.AnswerPromptTemplate, contextText, question)
}

// Generate sends the filled prompt as one user message and returns the
// trimmed completion. Every failure wraps models.ErrGeneration.
func (g *Generator) Generate(ctx context.Context, question, contextText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, BuildPrompt(question, contextText)),
	}
	resp, err := g.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrGeneration, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: model returned no choices", models.ErrGeneration)
	}

	answer := strings.TrimSpace(resp.Choices[0].Content)
	if answer == "" {
		return "", fmt.Errorf("%w: model returned an empty answer", models.ErrGeneration)
	}

	log.Debug().
		Str("model", g.model).
		Str("stop_reason", resp.Choices[0].StopReason).
		Dur("took", time.Since(start)).
		Msg("Generated answer")
	return answer, nil
}
