package rag

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"gdd-rag/internal/chunker"
	"gdd-rag/internal/embedding"
	"gdd-rag/internal/models"
)

const DefaultTopK = 4

// Scored is the cosine similarity of a query against the chunk at Index.
type Scored struct {
	Index int
	Score float64
}

// Ranker scores a query vector against the rows of one snapshot. Rows that
// cannot be scored (zero norm) are left out rather than reported as NaN.
type Ranker interface {
	Similarities(ctx context.Context, query []float32) ([]Scored, error)
}

// Backend builds a Ranker over a fixed, ordered set of vectors.
type Backend interface {
	Build(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (Ranker, error)
}

// Snapshot is an immutable chunks/vectors pair. Row i of vectors belongs to chunk i.
type Snapshot struct {
	chunks  []models.Chunk
	vectors [][]float32
	ranker  Ranker
	builtAt time.Time
}

func (s *Snapshot) Len() int { return len(s.chunks) }

// Chunks returns a copy of the indexed chunks in order.
func (s *Snapshot) Chunks() []models.Chunk { return slices.Clone(s.chunks) }

func (s *Snapshot) Dimension() int {
	if len(s.vectors) == 0 {
		return 0
	}
	return len(s.vectors[0])
}

func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Index holds the current snapshot and replaces it wholesale on every rebuild.
type Index struct {
	chunker       *chunker.Chunker
	embedder      *embedding.Service
	backend       Backend
	minSimilarity *float64
	snapshot      atomic.Pointer[Snapshot]
}

// NewIndex wires the pipeline. A nil minSimilarity disables the score floor;
// a nil backend uses the in-process matrix.
func NewIndex(ch *chunker.Chunker, embedder *embedding.Service, backend Backend, minSimilarity *float64) *Index {
	if backend == nil {
		backend = MemoryBackend{}
	}
	ix := &Index{
		chunker:       ch,
		embedder:      embedder,
		backend:       backend,
		minSimilarity: minSimilarity,
	}
	ix.snapshot.Store(&Snapshot{builtAt: time.Now()})
	return ix
}

// Snapshot returns the snapshot searches currently run against.
func (ix *Index) Snapshot() *Snapshot { return ix.snapshot.Load() }

// Rebuild re-chunks and re-embeds the full document set and swaps in the new
// snapshot. On failure the previous snapshot stays in place.
func (ix *Index) Rebuild(ctx context.Context, docs []models.Document) error {
	start := time.Now()
	chunks := ix.chunker.ChunkDocuments(docs)
	prev := ix.snapshot.Load()

	vectors, reused, err := ix.embedChunks(ctx, chunks, prev)
	if err != nil {
		log.Error().Err(err).Int("chunks", len(chunks)).Msg("Index rebuild failed, keeping previous index")
		return err
	}

	next := &Snapshot{chunks: chunks, vectors: vectors, builtAt: time.Now()}
	if len(chunks) > 0 {
		next.ranker, err = ix.backend.Build(ctx, chunks, vectors)
		if err != nil {
			log.Error().Err(err).Msg("Index backend build failed, keeping previous index")
			return fmt.Errorf("%w: build index: %v", models.ErrEmbedding, err)
		}
	}
	ix.snapshot.Store(next)

	log.Info().
		Int("documents", len(docs)).
		Int("chunks", len(chunks)).
		Int("reused_vectors", reused).
		Dur("took", time.Since(start)).
		Msg("Index rebuilt")
	return nil
}

// embedChunks embeds only chunk texts the previous snapshot does not already
// hold a vector for; the embedder is deterministic so reuse is exact.
func (ix *Index) embedChunks(ctx context.Context, chunks []models.Chunk, prev *Snapshot) ([][]float32, int, error) {
	if len(chunks) == 0 {
		return nil, 0, nil
	}

	known := make(map[string][]float32, prev.Len())
	for i, c := range prev.chunks {
		known[c.Text] = prev.vectors[i]
	}

	var missing []string
	seen := make(map[string]struct{})
	for _, c := range chunks {
		if _, ok := known[c.Text]; ok {
			continue
		}
		if _, ok := seen[c.Text]; ok {
			continue
		}
		seen[c.Text] = struct{}{}
		missing = append(missing, c.Text)
	}

	fresh, err := ix.embedder.EmbedChunks(ctx, missing)
	if err != nil {
		return nil, 0, err
	}
	for i, text := range missing {
		known[text] = fresh[i]
	}

	vectors := make([][]float32, len(chunks))
	reused := 0
	for i, c := range chunks {
		v := known[c.Text]
		if i > 0 && len(v) != len(vectors[0]) {
			return nil, 0, fmt.Errorf("%w: inconsistent vector dimensions %d and %d", models.ErrEmbedding, len(vectors[0]), len(v))
		}
		if _, ok := seen[c.Text]; !ok {
			reused++
		}
		vectors[i] = v
	}
	return vectors, reused, nil
}

// Search ranks every chunk against query by cosine similarity and returns at
// most topK results, highest score first, ties in chunk order. An empty index
// returns an empty slice without embedding the query.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]models.SearchResult, error) {
	snap := ix.snapshot.Load()
	if snap.Len() == 0 {
		return []models.SearchResult{}, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	qv, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(qv) != snap.Dimension() {
		return nil, fmt.Errorf("%w: query dimension %d does not match index dimension %d",
			models.ErrEmbedding, len(qv), snap.Dimension())
	}

	scored, err := snap.ranker.Similarities(ctx, qv)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search: %v", models.ErrEmbedding, err)
	}
	return rank(snap.chunks, scored, topK, ix.minSimilarity), nil
}

func rank(chunks []models.Chunk, scored []Scored, topK int, minSimilarity *float64) []models.SearchResult {
	slices.SortFunc(scored, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}

	results := make([]models.SearchResult, 0, len(scored))
	for _, s := range scored {
		if minSimilarity != nil && s.Score < *minSimilarity {
			break
		}
		results = append(results, models.SearchResult{
			ChunkText: chunks[s.Index].Text,
			Source:    chunks[s.Index].Source,
			Score:     s.Score,
		})
	}
	return results
}

// MemoryBackend ranks by flat cosine similarity over the in-process matrix.
type MemoryBackend struct{}

func (MemoryBackend) Build(_ context.Context, _ []models.Chunk, vectors [][]float32) (Ranker, error) {
	norms := make([]float64, len(vectors))
	for i, v := range vectors {
		norms[i] = l2(v)
	}
	return &memoryRanker{vectors: vectors, norms: norms}, nil
}

type memoryRanker struct {
	vectors [][]float32
	norms   []float64
}

func (r *memoryRanker) Similarities(ctx context.Context, query []float32) ([]Scored, error) {
	qn := l2(query)
	if qn == 0 {
		return nil, nil
	}
	scored := make([]Scored, 0, len(r.vectors))
	for i, v := range r.vectors {
		if r.norms[i] == 0 {
			continue
		}
		if len(v) != len(query) {
			return nil, fmt.Errorf("row %d has dimension %d, query %d", i, len(v), len(query))
		}
		var dot float64
		for j := range v {
			dot += float64(v[j]) * float64(query[j])
		}
		scored = append(scored, Scored{Index: i, Score: clamp(dot / (r.norms[i] * qn))})
	}
	return scored, ctx.Err()
}

func l2(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func clamp(x float64) float64 {
	return max(-1, min(1, x))
}
