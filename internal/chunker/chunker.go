package chunker

import (
	"fmt"
	"strings"

	"gdd-rag/internal/models"
)

const (
	DefaultChunkSize = 600 // words
	DefaultOverlap   = 100 // words
)

// Chunker splits text into overlapping windows of whitespace-delimited words.
type Chunker struct {
	size    int
	overlap int
}

// New returns a chunker, rejecting windows whose stride would not advance.
func New(size, overlap int) (*Chunker, error) {
	if overlap < 0 || size <= overlap {
		return nil, fmt.Errorf("%w: chunk size %d must exceed overlap %d >= 0", models.ErrInvalidConfig, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split windows text into chunks tagged with source. Once a window reaches the
// last word no further window is emitted, so every chunk adds new words.
func (c *Chunker) Split(text, source string) []models.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	stride := c.size - c.overlap
	chunks := make([]models.Chunk, 0, Count(len(words), c.size, c.overlap))
	for start := 0; start < len(words); start += stride {
		end := min(start+c.size, len(words))
		chunks = append(chunks, models.Chunk{
			Text:   strings.Join(words[start:end], " "),
			Source: source,
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}

// ChunkDocuments chunks every document in order into one flat sequence.
func (c *Chunker) ChunkDocuments(docs []models.Document) []models.Chunk {
	var all []models.Chunk
	for _, doc := range docs {
		all = append(all, c.Split(doc.Text, doc.Filename)...)
	}
	return all
}

// Count is the number of chunks Split produces for a text of n words.
func Count(n, size, overlap int) int {
	if n <= 0 {
		return 0
	}
	if n <= size {
		return 1
	}
	stride := size - overlap
	return 1 + (n-size+stride-1)/stride
}

// Reassemble joins consecutive chunks of one document, dropping the overlap
// words each chunk shares with its predecessor.
func Reassemble(chunks []models.Chunk, overlap int) string {
	var words []string
	for i, chunk := range chunks {
		w := strings.Fields(chunk.Text)
		if i > 0 {
			w = w[min(overlap, len(w)):]
		}
		words = append(words, w...)
	}
	return strings.Join(words, " ")
}
