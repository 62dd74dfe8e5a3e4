package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"gdd-rag/internal/models"
)

const (
	FormatText     = "txt"
	FormatMarkdown = "md"
	FormatPDF      = "pdf"
	FormatDOCX     = "docx"
	FormatXLSX     = "xlsx"
	FormatPPTX     = "pptx"
)

// Formats lists the extensions Extract understands.
var Formats = []string{FormatText, FormatMarkdown, FormatPDF, FormatDOCX, FormatXLSX, FormatPPTX}

// Format maps a filename to its extractor format, or "" when unsupported.
func Format(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "txt", "text":
		return FormatText
	case "md", "markdown":
		return FormatMarkdown
	case FormatPDF, FormatDOCX, FormatXLSX, FormatPPTX:
		return ext
	default:
		return ""
	}
}

// Extract turns uploaded bytes into plain text, choosing the reader by extension.
//
// Unknown extensions fail with models.ErrUnsupportedFormat. Binary formats that
// cannot be read, or that contain no text (a scanned PDF, say), return "" and an
// error wrapping models.ErrMalformedDocument; callers keep such files as empty
// documents rather than failing the batch.
func Extract(filename string, data []byte) (string, error) {
	switch Format(filename) {
	case FormatText:
		return parseText(data), nil
	case FormatMarkdown:
		return parseMarkdown(data)
	case FormatPDF:
		return guarded(FormatPDF, data, parsePDF)
	case FormatDOCX:
		return guarded(FormatDOCX, data, parseDOCX)
	case FormatXLSX:
		return guarded(FormatXLSX, data, parseXLSX)
	case FormatPPTX:
		return guarded(FormatPPTX, data, parsePPTX)
	default:
		return "", fmt.Errorf("%w: %q (supported: %s)", models.ErrUnsupportedFormat,
			filepath.Ext(filename), strings.Join(Formats, ", "))
	}
}

// guarded runs a binary-format reader, converting failures, panics from the
// underlying libraries and empty output into ErrMalformedDocument.
func guarded(format string, data []byte, read func([]byte) (string, error)) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("format", format).Interface("panic", r).Msg("Reader panicked on malformed input")
			text, err = "", fmt.Errorf("%w: %s reader failed: %v", models.ErrMalformedDocument, format, r)
		}
	}()

	text, err = read(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrMalformedDocument, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no extractable text in %s", models.ErrMalformedDocument, format)
	}
	return text, nil
}

func parseText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	return strings.ToValidUTF8(string(data), "�")
}

func parsePDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}
	return text.String(), nil
}

func parseDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer r.Close()

	return xmlParagraphText(strings.NewReader(r.Editable().GetContent()))
}

func parseXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var text strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			log.Warn().Err(err).Str("sheet", sheetName).Msg("Skipping unreadable sheet")
			continue
		}
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
	}
	return text.String(), nil
}
