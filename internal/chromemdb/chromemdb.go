package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"gdd-rag/internal/models"
	"gdd-rag/internal/rag"
)

const DefaultCollection = "gdd-chunks"

// metadata keys stored with every chunk
const (
	MetaSource = "source"
	MetaChunk  = "chunk"
)

var errNoEmbeddingFunc = errors.New("chromemdb: embeddings must be supplied by the caller")

// Backend builds a fresh in-memory chromem-go collection for every index
// snapshot. Vectors always come from the shared embedder, so the collection
// never embeds text on its own.
type Backend struct {
	collectionName string
	concurrency    int
}

func NewBackend(collectionName string) *Backend {
	if collectionName == "" {
		collectionName = DefaultCollection
	}
	return &Backend{collectionName: collectionName, concurrency: runtime.NumCPU()}
}

// Build loads chunks and their vectors into a new collection. Rows with a
// zero vector are not stored because they cannot be normalised.
func (b *Backend) Build(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (rag.Ranker, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chromemdb: %d chunks but %d vectors", len(chunks), len(vectors))
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection(b.collectionName, nil, refuseEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %v", err)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for i, c := range chunks {
		if zero(vectors[i]) {
			continue
		}
		docs = append(docs, chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   c.Text,
			Metadata:  map[string]string{MetaSource: c.Source, MetaChunk: strconv.Itoa(i)},
			Embedding: slices.Clone(vectors[i]),
		})
	}
	if len(docs) > 0 {
		if err := collection.AddDocuments(ctx, docs, b.concurrency); err != nil {
			return nil, fmt.Errorf("failed to add documents: %v", err)
		}
	}

	log.Debug().
		Str("collection", b.collectionName).
		Int("rows", len(docs)).
		Int("skipped", len(chunks)-len(docs)).
		Msg("Built chromem collection")
	return &collectionRanker{collection: collection}, nil
}

type collectionRanker struct {
	collection *chromem.Collection
}

// Similarities queries every stored row so the caller can apply its own
// ordering and cut-off.
func (r *collectionRanker) Similarities(ctx context.Context, query []float32) ([]rag.Scored, error) {
	n := r.collection.Count()
	if n == 0 || zero(query) {
		return nil, nil
	}

	results, err := r.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: query,
		NResults:       n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	scored := make([]rag.Scored, 0, len(results))
	for _, res := range results {
		idx, err := strconv.Atoi(res.ID)
		if err != nil {
			return nil, fmt.Errorf("unexpected document id %q: %v", res.ID, err)
		}
		score := max(-1, min(1, float64(res.Similarity)))
		scored = append(scored, rag.Scored{Index: idx, Score: score})
	}
	return scored, nil
}

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

func zero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
