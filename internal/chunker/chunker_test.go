package chunker

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gdd-rag/internal/models"
)

func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestNew_RejectsNonAdvancingStride(t *testing.T) {
	for _, tc := range []struct{ size, overlap int }{
		{100, 100},
		{50, 100},
		{10, -1},
		{0, 0},
	} {
		_, err := New(tc.size, tc.overlap)
		assert.ErrorIs(t, err, models.ErrInvalidConfig, "size=%d overlap=%d", tc.size, tc.overlap)
	}

	c, err := New(600, 100)
	require.NoError(t, err)
	assert.Equal(t, 600, c.Size())
	assert.Equal(t, 100, c.Overlap())
}

func TestSplit_EmptyText(t *testing.T) {
	c, err := New(DefaultChunkSize, DefaultOverlap)
	require.NoError(t, err)

	assert.Empty(t, c.Split("", "a.txt"))
	assert.Empty(t, c.Split(" \n\t ", "a.txt"))
}

func TestSplit_ShortDocumentSingleChunk(t *testing.T) {
	c, err := New(600, 100)
	require.NoError(t, err)

	chunks := c.Split("The combat system uses three stances: offense, defense, stealth.", "gdd.txt")
	require.Len(t, chunks, 1)
	assert.Equal(t, "gdd.txt", chunks[0].Source)
	assert.Equal(t, "The combat system uses three stances: offense, defense, stealth.", chunks[0].Text)
}

func TestSplit_NormalisesWhitespace(t *testing.T) {
	c, err := New(3, 1)
	require.NoError(t, err)

	chunks := c.Split("a  b\n\nc\td e", "doc")
	require.Len(t, chunks, 2)
	assert.Equal(t, "a b c", chunks[0].Text)
	assert.Equal(t, "c d e", chunks[1].Text)
}

func TestSplit_CountFormula(t *testing.T) {
	tests := []struct {
		size, overlap int
	}{
		{600, 100},
		{600, 50},
		{10, 3},
		{5, 0},
		{2, 1},
	}
	for _, tt := range tests {
		c, err := New(tt.size, tt.overlap)
		require.NoError(t, err)

		for n := 1; n <= 1500; n += 37 {
			chunks := c.Split(numberedWords(n), "doc")

			expected := int(math.Ceil(float64(n-tt.overlap) / float64(tt.size-tt.overlap)))
			if expected < 1 {
				expected = 1
			}
			assert.Len(t, chunks, expected, "size=%d overlap=%d words=%d", tt.size, tt.overlap, n)
			assert.Equal(t, expected, Count(n, tt.size, tt.overlap))
		}
	}
}

func TestSplit_ReassembleReproducesWords(t *testing.T) {
	c, err := New(10, 4)
	require.NoError(t, err)

	text := numberedWords(97)
	chunks := c.Split(text, "doc")
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		n := len(strings.Fields(chunk.Text))
		if i < len(chunks)-1 {
			assert.Equal(t, 10, n)
		} else {
			assert.LessOrEqual(t, n, 10)
		}
	}

	// consecutive chunks share exactly the overlap words
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Text)
		cur := strings.Fields(chunks[i].Text)
		assert.Equal(t, prev[len(prev)-4:], cur[:4])
	}

	assert.Equal(t, text, Reassemble(chunks, c.Overlap()))
}

func TestChunkDocuments_PreservesOrderAndSources(t *testing.T) {
	c, err := New(4, 1)
	require.NoError(t, err)

	docs := []models.Document{
		{Filename: "a.md", Text: numberedWords(7)},
		{Filename: "empty.pdf", Text: ""},
		{Filename: "b.txt", Text: "one two"},
	}
	chunks := c.ChunkDocuments(docs)

	sources := models.Sources(chunks)
	assert.Equal(t, []string{"a.md", "a.md", "b.txt"}, sources)
	assert.Len(t, models.Texts(chunks), len(sources))
	assert.Equal(t, "one two", chunks[2].Text)
}
