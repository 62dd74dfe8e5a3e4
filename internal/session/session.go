package session

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"gdd-rag/internal/models"
	"gdd-rag/internal/parser"
	"gdd-rag/internal/rag"
)

//go:embed samples/*
var samples embed.FS

// File is one uploaded file.
type File struct {
	Name string
	Data []byte
}

// UploadReport describes what a batch upload did. Warnings name the file they concern.
type UploadReport struct {
	Loaded   []string `json:"loaded"`
	Warnings []string `json:"warnings"`
	Chunks   int      `json:"chunks"`
}

// DocumentInfo is the listing view of a document.
type DocumentInfo struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Words    int    `json:"words"`
	Preview  string `json:"preview"`
	Warning  string `json:"warning,omitempty"`
}

type Status struct {
	Documents int       `json:"documents"`
	Chunks    int       `json:"chunks"`
	Dimension int       `json:"dimension"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Session owns the document set and keeps the index in step with it. All
// operations are serialised so the single embedder is never driven concurrently.
type Session struct {
	mu    sync.Mutex
	rag   *rag.RAG
	docs  map[string]models.Document
	order []string

	// documents mirrors len(docs) for readers that must not wait on mu
	documents atomic.Int64
}

func New(r *rag.RAG) *Session {
	return &Session{rag: r, docs: make(map[string]models.Document)}
}

// Upload extracts every file, replaces documents with the same name and
// rebuilds the index once. A bad file never aborts the batch: unsupported
// formats are skipped and unreadable documents are kept empty, each with a
// warning. If the rebuild fails the document set is rolled back.
func (s *Session) Upload(ctx context.Context, files []File) (UploadReport, error) {
	report := UploadReport{Loaded: []string{}, Warnings: []string{}}
	if len(files) == 0 {
		return report, fmt.Errorf("%w: no files uploaded", models.ErrEmptyInput)
	}

	var docs []models.Document
	position := make(map[string]int)
	keep := func(doc models.Document) {
		if i, ok := position[doc.Filename]; ok {
			docs[i] = doc
			report.Warnings = append(report.Warnings, doc.Filename+": replaced earlier file with the same name in this batch")
			return
		}
		position[doc.Filename] = len(docs)
		docs = append(docs, doc)
	}
	for _, f := range files {
		doc, err := extract(f)
		if err != nil {
			report.Warnings = append(report.Warnings, err.Error())
			if errors.Is(err, models.ErrMalformedDocument) {
				keep(doc)
			}
			continue
		}
		keep(doc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(docs) == 0 {
		report.Chunks = s.rag.Index().Snapshot().Len()
		return report, nil
	}

	prevDocs, prevOrder := s.docs, s.order
	s.docs, s.order = maps.Clone(prevDocs), slices.Clone(prevOrder)
	for _, doc := range docs {
		s.put(doc)
		report.Loaded = append(report.Loaded, doc.Filename)
	}

	if err := s.rebuild(ctx); err != nil {
		s.docs, s.order = prevDocs, prevOrder
		report.Loaded = []string{}
		return report, err
	}
	s.documents.Store(int64(len(s.docs)))
	report.Chunks = s.rag.Index().Snapshot().Len()

	log.Info().
		Strs("loaded", report.Loaded).
		Int("warnings", len(report.Warnings)).
		Int("chunks", report.Chunks).
		Msg("Documents uploaded")
	return report, nil
}

// LoadSamples uploads the bundled example design documents.
func (s *Session) LoadSamples(ctx context.Context) (UploadReport, error) {
	files, err := SampleFiles()
	if err != nil {
		return UploadReport{}, err
	}
	return s.Upload(ctx, files)
}

// SampleFiles returns the bundled example documents in name order.
func SampleFiles() ([]File, error) {
	entries, err := fs.ReadDir(samples, "samples")
	if err != nil {
		return nil, err
	}
	files := make([]File, 0, len(entries))
	for _, e := range entries {
		data, err := samples.ReadFile(path.Join("samples", e.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, File{Name: e.Name(), Data: data})
	}
	return files, nil
}

// Documents lists the loaded documents in upload order.
func (s *Session) Documents() []DocumentInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]DocumentInfo, 0, len(s.order))
	for _, name := range s.order {
		doc := s.docs[name]
		infos = append(infos, DocumentInfo{
			Filename: doc.Filename,
			Format:   doc.Format,
			Words:    len(strings.Fields(doc.Text)),
			Preview:  preview(doc.Text, models.PreviewLength),
			Warning:  doc.Warning,
		})
	}
	return infos
}

func (s *Session) Document(name string) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[name]
	if !ok {
		return models.Document{}, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, name)
	}
	return doc, nil
}

// Delete removes one document and rebuilds the index without it.
func (s *Session) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[name]; !ok {
		return fmt.Errorf("%w: %s", models.ErrDocumentNotFound, name)
	}

	prevDocs, prevOrder := s.docs, s.order
	s.docs = maps.Clone(prevDocs)
	delete(s.docs, name)
	s.order = slices.DeleteFunc(slices.Clone(prevOrder), func(n string) bool { return n == name })

	if err := s.rebuild(ctx); err != nil {
		s.docs, s.order = prevDocs, prevOrder
		return err
	}
	s.documents.Store(int64(len(s.docs)))
	log.Info().Str("file", name).Msg("Document removed")
	return nil
}

// Search returns the ranked chunks for question without calling the LLM.
func (s *Session) Search(ctx context.Context, question string, topK int) ([]models.SearchResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", models.ErrEmptyInput)
	}
	if topK <= 0 {
		topK = s.rag.TopK()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rag.Index().Search(ctx, question, topK)
}

// Ask answers question from the loaded documents. It needs at least one
// document and a non-blank question.
func (s *Session) Ask(ctx context.Context, question string) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", models.ErrEmptyInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.docs) == 0 {
		return nil, fmt.Errorf("%w: upload at least one document first", models.ErrEmptyInput)
	}
	return s.rag.Query(ctx, question)
}

// Status reports the index without taking the session lock, so it stays
// responsive while a question is being answered.
func (s *Session) Status() Status {
	snap := s.rag.Index().Snapshot()
	return Status{
		Documents: int(s.documents.Load()),
		Chunks:    snap.Len(),
		Dimension: snap.Dimension(),
		IndexedAt: snap.BuiltAt(),
	}
}

func (s *Session) put(doc models.Document) {
	if _, ok := s.docs[doc.Filename]; !ok {
		s.order = append(s.order, doc.Filename)
	}
	s.docs[doc.Filename] = doc
}

func (s *Session) rebuild(ctx context.Context) error {
	docs := make([]models.Document, 0, len(s.order))
	for _, name := range s.order {
		docs = append(docs, s.docs[name])
	}
	return s.rag.Index().Rebuild(ctx, docs)
}

// extract reads one file. A malformed document is returned, empty, together
// with its error so the caller can keep it.
func extract(f File) (models.Document, error) {
	name := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return models.Document{}, &models.FileError{Filename: f.Name, Err: fmt.Errorf("%w: missing file name", models.ErrEmptyInput)}
	}

	doc := models.Document{Filename: name, Format: parser.Format(name)}
	text, err := parser.Extract(name, f.Data)
	if err != nil {
		ferr := &models.FileError{Filename: name, Err: err}
		if errors.Is(err, models.ErrMalformedDocument) {
			doc.Warning = ferr.Error()
			log.Warn().Err(err).Str("file", name).Msg("Document has no extractable text")
			return doc, ferr
		}
		log.Warn().Err(err).Str("file", name).Msg("Skipping file")
		return models.Document{}, ferr
	}
	doc.Text = text
	return doc, nil
}

// preview returns at most n characters of text, never splitting a rune.
func preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}
