package rag

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdd-rag/internal/models"
)

type stubGenerator struct {
	answer   string
	err      error
	calls    int
	question string
	context  string
}

func (g *stubGenerator) Generate(_ context.Context, question, contextText string) (string, error) {
	g.calls++
	g.question, g.context = question, contextText
	return g.answer, g.err
}

func TestRAG_Query(t *testing.T) {
	ix := newTestIndex(t, newTableEmbedder(nil), 600, 100, nil)
	ctx := context.Background()
	require.NoError(t, ix.Rebuild(ctx, []models.Document{{
		Filename: "gdd.txt",
		Text:     "The combat system uses three stances: offense, defense, stealth.",
	}}))

	gen := &stubGenerator{answer: "Offense, defense and stealth."}
	r := NewRAG(ix, gen, 0)
	assert.Equal(t, DefaultTopK, r.TopK())

	answer, err := r.Query(ctx, "What stances exist in combat?")
	require.NoError(t, err)
	assert.Equal(t, "Offense, defense and stealth.", answer.Answer)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "gdd.txt", answer.Sources[0].Source)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, "What stances exist in combat?", gen.question)
	assert.Contains(t, gen.context, "[From: gdd.txt]")
}

func TestRAG_QueryWithoutContextUsesFallback(t *testing.T) {
	ix := newTestIndex(t, newTableEmbedder(nil), 600, 100, nil)
	gen := &stubGenerator{answer: "should not be used"}

	answer, err := NewRAG(ix, gen, 4).Query(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, models.FallbackAnswer, answer.Answer)
	assert.Zero(t, gen.calls)
}

func TestRAG_GenerationFailureKeepsSources(t *testing.T) {
	ix := newTestIndex(t, newTableEmbedder(nil), 600, 100, nil)
	ctx := context.Background()
	require.NoError(t, ix.Rebuild(ctx, gameDocs(3)))

	gen := &stubGenerator{err: fmt.Errorf("%w: rate limited", models.ErrGeneration)}
	answer, err := NewRAG(ix, gen, 2).Query(ctx, "combat")
	assert.ErrorIs(t, err, models.ErrGeneration)
	require.NotNil(t, answer)
	assert.NotEmpty(t, answer.Sources)
	assert.Empty(t, answer.Answer)
}

func TestRAG_NoGeneratorConfigured(t *testing.T) {
	ix := newTestIndex(t, newTableEmbedder(nil), 600, 100, nil)
	ctx := context.Background()
	require.NoError(t, ix.Rebuild(ctx, gameDocs(1)))

	answer, err := NewRAG(ix, nil, 4).Query(ctx, "combat")
	assert.ErrorIs(t, err, models.ErrGeneration)
	assert.ErrorIs(t, err, models.ErrConfig)
	require.NotNil(t, answer)
	assert.NotEmpty(t, answer.Sources)
}

func TestRAG_EmbeddingFailureSurfaces(t *testing.T) {
	emb := newTableEmbedder(nil)
	ix := newTestIndex(t, emb, 600, 100, nil)
	ctx := context.Background()
	require.NoError(t, ix.Rebuild(ctx, gameDocs(1)))

	emb.failQuery = true
	gen := &stubGenerator{}
	answer, err := NewRAG(ix, gen, 4).Query(ctx, "combat")
	assert.Nil(t, answer)
	assert.ErrorIs(t, err, models.ErrEmbedding)
	assert.Zero(t, gen.calls)
}
