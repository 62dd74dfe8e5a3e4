package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdd-rag/internal/config"
	"gdd-rag/internal/models"
)

// countingEmbedder records calls and can be told to fail or return ragged vectors.
type countingEmbedder struct {
	docCalls   int
	queryCalls int
	err        error
	ragged     bool
}

func (c *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	c.docCalls++
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
		if c.ragged && i == len(texts)-1 {
			out[i] = []float32{1, 0}
		}
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	c.queryCalls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{1, 0, 0}, nil
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestHashEmbedder_DeterministicAndNormalised(t *testing.T) {
	e := NewHashEmbedder(384)
	ctx := context.Background()

	v1, err := e.EmbedQuery(ctx, "The combat system uses three stances.")
	require.NoError(t, err)
	v2, err := e.EmbedQuery(ctx, "The combat system uses three stances.")
	require.NoError(t, err)

	assert.Len(t, v1, 384)
	assert.Equal(t, v1, v2)
	assert.InDelta(t, 1.0, norm(v1), 1e-6)
}

func TestHashEmbedder_BatchMatchesQuery(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	texts := []string{"offense stance", "stealth at night"}
	batch, err := e.EmbedDocuments(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	for i, text := range texts {
		q, err := e.EmbedQuery(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, q, batch[i])
	}
}

func TestHashEmbedder_StopwordsOnlyIsZeroVector(t *testing.T) {
	e := NewHashEmbedder(32)
	v, err := e.EmbedQuery(context.Background(), "what is the")
	require.NoError(t, err)
	assert.Zero(t, norm(v))
}

func TestHashEmbedder_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEmbedder(8).EmbedDocuments(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_EmptyBatchSkipsModel(t *testing.T) {
	inner := &countingEmbedder{}
	svc := NewService(inner, time.Second)

	vectors, err := svc.EmbedChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Zero(t, inner.docCalls)
}

func TestService_WrapsFailures(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("out of memory")}
	svc := NewService(inner, time.Second)

	_, err := svc.EmbedChunks(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, models.ErrEmbedding)
	assert.Contains(t, err.Error(), "out of memory")

	_, err = svc.EmbedQuery(context.Background(), "a")
	assert.ErrorIs(t, err, models.ErrEmbedding)
}

func TestService_RejectsRaggedBatch(t *testing.T) {
	svc := NewService(&countingEmbedder{ragged: true}, time.Second)
	_, err := svc.EmbedChunks(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, models.ErrEmbedding)
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(&config.EmbedderConfig{Type: config.EmbedderHash, Dimension: 16})
	require.NoError(t, err)
	assert.IsType(t, &HashEmbedder{}, e)

	t.Setenv("GDD_TEST_MISSING_KEY", "")
	_, err = NewEmbedder(&config.EmbedderConfig{Type: config.EmbedderOpenAI, APIKeyEnv: "GDD_TEST_MISSING_KEY"})
	assert.ErrorIs(t, err, models.ErrConfig)

	_, err = NewEmbedder(&config.EmbedderConfig{Type: "bert"})
	assert.ErrorIs(t, err, models.ErrConfig)
}
