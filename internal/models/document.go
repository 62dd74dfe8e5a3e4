package models

// Document is one uploaded file reduced to plain text. Filename is unique within a session.
type Document struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Text     string `json:"text"`
	Warning  string `json:"warning,omitempty"`
}

// Chunk is a window of a document's words tagged with the document it came from.
type Chunk struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// SearchResult is a chunk ranked against a query by cosine similarity.
type SearchResult struct {
	ChunkText string  `json:"chunk"`
	Source    string  `json:"source"`
	Score     float64 `json:"score"`
}

// Texts returns the chunk texts in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// Sources returns the chunk source filenames in order.
func Sources(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Source
	}
	return out
}

// Answer is the outcome of one question: the generated text plus what it was grounded on.
type Answer struct {
	Question string         `json:"question"`
	Answer   string         `json:"answer"`
	Context  string         `json:"context"`
	Sources  []SearchResult `json:"sources"`
}
