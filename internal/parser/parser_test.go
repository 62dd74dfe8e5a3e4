package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gdd-rag/internal/models"
)

func zipFiles(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFormat(t *testing.T) {
	tests := map[string]string{
		"gdd.txt":        FormatText,
		"LORE.MD":        FormatMarkdown,
		"notes.markdown": FormatMarkdown,
		"pitch.pdf":      FormatPDF,
		"combat.docx":    FormatDOCX,
		"economy.xlsx":   FormatXLSX,
		"deck.pptx":      FormatPPTX,
		"game.exe":       "",
		"balance.ods":    "",
		"README":         "",
	}
	for name, want := range tests {
		assert.Equal(t, want, Format(name), name)
	}
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	_, err := Extract("setup.exe", []byte("MZ..."))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), ".exe")
}

func TestExtract_Text(t *testing.T) {
	text, err := Extract("gdd.txt", []byte("\xef\xbb\xbfThe combat system uses three stances."))
	require.NoError(t, err)
	assert.Equal(t, "The combat system uses three stances.", text)

	text, err = Extract("bad.txt", []byte("ok \xff\xfe end"))
	require.NoError(t, err)
	assert.Equal(t, "ok � end", text)
}

func TestExtract_Markdown(t *testing.T) {
	src := "---\ntitle: Combat Bible\n---\n" +
		"# Combat\n\n" +
		"The **stances** are [offense](https://example.com/offense) and `defense`.\n\n" +
		"- stealth\n- parry\n\n" +
		"```\ncooldown = 3\n```\n\n" +
		"<div>internal note</div>\n"

	text, err := Extract("combat.md", []byte(src))
	require.NoError(t, err)

	assert.Contains(t, text, "Combat\n")
	assert.Contains(t, text, "The stances are offense and defense.")
	assert.Contains(t, text, "stealth")
	assert.Contains(t, text, "parry")
	assert.Contains(t, text, "cooldown = 3")
	assert.NotContains(t, text, "https://example.com")
	assert.NotContains(t, text, "**")
	assert.NotContains(t, text, "title:")
	assert.NotContains(t, text, "internal note")
}

func TestExtract_DOCX(t *testing.T) {
	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Combat</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Three stances: </w:t></w:r><w:r><w:t>offense, defense, stealth.</w:t></w:r></w:p>
<w:p></w:p>
</w:body>
</w:document>`
	data := zipFiles(t, map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/document.xml":            document,
		"word/_rels/document.xml.rels": `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
	})

	text, err := Extract("combat.docx", data)
	require.NoError(t, err)
	assert.Equal(t, "Combat\nThree stances: offense, defense, stealth.\n", text)
}

func TestExtract_PPTX(t *testing.T) {
	slide := func(body string) string {
		return `<?xml version="1.0"?><p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` +
			body + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
	}
	data := zipFiles(t, map[string]string{
		"ppt/slides/slide10.xml":           slide("Roadmap"),
		"ppt/slides/slide2.xml":            slide("Core loop"),
		"ppt/slides/slide1.xml":            slide("Pitch"),
		"ppt/slides/_rels/slide1.xml.rels": `<Relationships/>`,
	})

	text, err := Extract("deck.pptx", data)
	require.NoError(t, err)
	assert.Equal(t, "Pitch\n\nCore loop\n\nRoadmap\n\n", text)
}

// buildPDF writes a minimal PDF with one page per content stream, all using Helvetica.
func buildPDF(pages ...string) []byte {
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i, content := range pages {
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func textPage(s string) string {
	return fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", s)
}

func TestExtract_PDF(t *testing.T) {
	tests := []struct {
		name  string
		pages []string
		want  string
	}{
		{"two pages", []string{textPage("Combat uses three stances"), textPage("Economy uses gold")}, "Combat uses three stances\nEconomy uses gold\n"},
		{"blank page skipped", []string{textPage("Combat uses three stances"), "q Q", textPage("Economy uses gold")}, "Combat uses three stances\nEconomy uses gold\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := Extract("design.pdf", buildPDF(tt.pages...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestExtract_PDFWithoutTextIsMalformed(t *testing.T) {
	text, err := Extract("scan.pdf", buildPDF("q Q", "q Q"))
	assert.Empty(t, text)
	assert.ErrorIs(t, err, models.ErrMalformedDocument)
}

func TestExtract_XLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Stance"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Cost"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "offense"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 3))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	text, err := Extract("balance.xlsx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "## Sheet: Sheet1\nStance\tCost\noffense\t3\n", text)
}

func TestExtract_MalformedBinaryReturnsEmptyText(t *testing.T) {
	for _, name := range []string{"scan.pdf", "broken.docx", "broken.xlsx", "broken.pptx"} {
		t.Run(name, func(t *testing.T) {
			text, err := Extract(name, []byte("definitely not a real office or pdf file"))
			assert.Empty(t, text)
			assert.ErrorIs(t, err, models.ErrMalformedDocument)
		})
	}
}

func TestExtract_DOCXWithoutTextIsMalformed(t *testing.T) {
	data := zipFiles(t, map[string]string{
		"word/document.xml":            `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p></w:p></w:body></w:document>`,
		"word/_rels/document.xml.rels": `<Relationships/>`,
	})
	text, err := Extract("blank.docx", data)
	assert.Empty(t, text)
	assert.ErrorIs(t, err, models.ErrMalformedDocument)
}
