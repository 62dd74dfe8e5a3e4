package rag

import (
	"context"
	"fmt"
	"strings"

	"gdd-rag/internal/models"
)

// FormatContext renders results, in order, as labelled blocks for the LLM prompt.
func FormatContext(results []models.SearchResult) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, models.ContextHeaderFormat, r.Source, r.ChunkText)
	}
	return b.String()
}

// BuildContext searches and formats in one step, returning both the prompt
// context and the structured results it was built from.
func (ix *Index) BuildContext(ctx context.Context, query string, topK int) (string, []models.SearchResult, error) {
	results, err := ix.Search(ctx, query, topK)
	if err != nil {
		return "", nil, err
	}
	return FormatContext(results), results, nil
}
