package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// HashEmbedder is a deterministic bag-of-words embedder: every non-stopword
// token is hashed (FNV-1a) into one of dim buckets and the counts are
// L2-normalised. It needs no model download and is used offline and in tests.
type HashEmbedder struct {
	dim          int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &HashEmbedder{
		dim:          dim,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
	}
}

func (e *HashEmbedder) Dimension() int { return e.dim }

func (e *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

func (e *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

// embed returns the all-zero vector for text without tokens.
func (e *HashEmbedder) embed(text string) []float32 {
	counts := make([]float64, e.dim)
	for _, tok := range e.tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		counts[h.Sum32()%uint32(e.dim)]++
	}

	var norm float64
	for _, c := range counts {
		norm += c * c
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, e.dim)
	if norm == 0 {
		return vec
	}
	for i, c := range counts {
		vec[i] = float32(c / norm)
	}
	return vec
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "how", "why", "when", "where", "do", "does", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
