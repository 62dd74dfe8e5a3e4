package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for file extensions no extractor handles
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrMalformedDocument means extraction produced no usable text
	ErrMalformedDocument = errors.New("malformed document")

	// ErrEmptyInput rejects blank questions or questions with no documents loaded
	ErrEmptyInput = errors.New("empty input")

	// ErrEmbedding wraps embedding model failures; the request can be retried
	ErrEmbedding = errors.New("embedding failed")

	// ErrGeneration wraps LLM failures and missing credentials
	ErrGeneration = errors.New("answer unavailable")

	// ErrConfig indicates missing or invalid configuration
	ErrConfig = errors.New("configuration error")

	// ErrInvalidConfig is returned for chunk windows that cannot advance
	ErrInvalidConfig = errors.New("invalid chunker configuration")

	// ErrDocumentNotFound is returned when a named document is not loaded
	ErrDocumentNotFound = errors.New("document not found")
)

// FileError ties a per-document failure to the file it came from.
type FileError struct {
	Filename string
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
