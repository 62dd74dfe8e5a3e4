package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gdd-rag/internal/models"
	"gdd-rag/internal/session"
)

const helpText = `Commands:
  /add <paths...>   load documents (txt, md, pdf, docx, xlsx, pptx)
  /samples          load the bundled example design documents
  /docs             list loaded documents
  /show <name>      print a document's extracted text
  /rm <name>        remove a document
  /search <query>   show ranked chunks without asking the LLM
  /help             show this help
Anything else is sent as a question. Ctrl+C quits.`

type command struct {
	name string
	args []string
	text string
}

// parseCommand splits a line into a slash command and its arguments. Lines
// that do not start with "/" are questions.
func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{name: "ask", text: line}
	}
	fields := strings.Fields(line)
	name := strings.TrimPrefix(fields[0], "/")
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	return command{name: name, args: fields[1:], text: rest}
}

// resultMsg carries the outcome of a command back into Update.
type resultMsg struct {
	title  string
	body   string
	status string
	err    error
}

func (m Model) run(c command) tea.Cmd {
	svc, timeout, topK := m.service, m.timeout, m.topK
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		switch c.name {
		case "ask":
			return ask(ctx, svc, c.text)
		case "search":
			return search(ctx, svc, c.text, topK)
		case "add":
			return add(ctx, svc, c.args)
		case "samples":
			report, err := svc.LoadSamples(ctx)
			if err != nil {
				return resultMsg{err: err}
			}
			return uploadResult(report)
		case "docs":
			return resultMsg{title: "Documents", body: renderDocuments(svc.Documents())}
		case "show":
			doc, err := svc.Document(c.text)
			if err != nil {
				return resultMsg{err: err}
			}
			return resultMsg{title: doc.Filename, body: doc.Text}
		case "rm":
			if err := svc.Delete(ctx, c.text); err != nil {
				return resultMsg{err: err}
			}
			return resultMsg{status: fmt.Sprintf("Removed %s", c.text), body: renderDocuments(svc.Documents()), title: "Documents"}
		case "help":
			return resultMsg{title: "Help", body: helpText}
		default:
			return resultMsg{err: fmt.Errorf("unknown command /%s, try /help", c.name)}
		}
	}
}

func ask(ctx context.Context, svc Service, question string) resultMsg {
	start := time.Now()
	answer, err := svc.Ask(ctx, question)
	if err != nil {
		msg := resultMsg{err: err}
		if answer != nil {
			msg.title = question
			msg.body = renderSources(answer.Sources, question)
		}
		return msg
	}
	return resultMsg{
		title:  question,
		body:   answerStyle.Render(answer.Answer) + "\n\n" + renderSources(answer.Sources, question),
		status: fmt.Sprintf("Answered in %s", time.Since(start).Round(time.Millisecond)),
	}
}

func search(ctx context.Context, svc Service, query string, topK int) resultMsg {
	results, err := svc.Search(ctx, query, topK)
	if err != nil {
		return resultMsg{err: err}
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s  score=%.3f\n%s\n\n", i+1, r.Source, r.Score, highlightBestSentence(r.ChunkText, query))
	}
	if len(results) == 0 {
		b.WriteString("No results.")
	}
	return resultMsg{title: fmt.Sprintf("Results for %q", query), body: b.String()}
}

func add(ctx context.Context, svc Service, paths []string) resultMsg {
	if len(paths) == 0 {
		return resultMsg{err: fmt.Errorf("%w: /add needs at least one path", models.ErrEmptyInput)}
	}
	files, warnings := ReadFiles(paths)
	report, err := svc.Upload(ctx, files)
	if err != nil && len(files) > 0 {
		return resultMsg{err: err}
	}
	report.Warnings = append(warnings, report.Warnings...)
	return uploadResult(report)
}

// ReadFiles loads paths from disk. Unreadable paths become warnings.
func ReadFiles(paths []string) ([]session.File, []string) {
	var files []session.File
	var warnings []string
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		files = append(files, session.File{Name: filepath.Base(p), Data: data})
	}
	return files, warnings
}

func uploadResult(report session.UploadReport) resultMsg {
	var b strings.Builder
	for _, name := range report.Loaded {
		fmt.Fprintf(&b, "loaded  %s\n", name)
	}
	for _, w := range report.Warnings {
		fmt.Fprintf(&b, "%s\n", warningStyle.Render("warning "+w))
	}
	return resultMsg{
		title:  "Upload",
		body:   b.String(),
		status: fmt.Sprintf("%d loaded, %d warnings, %d chunks indexed", len(report.Loaded), len(report.Warnings), report.Chunks),
	}
}

func renderDocuments(docs []session.DocumentInfo) string {
	if len(docs) == 0 {
		return "No documents loaded. Use /add or /samples."
	}
	var b strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&b, "%s  (%s, %d words)\n", titleStyle.Render(d.Filename), d.Format, d.Words)
		if d.Warning != "" {
			fmt.Fprintf(&b, "%s\n", warningStyle.Render(d.Warning))
		}
		fmt.Fprintf(&b, "%s\n\n", dimStyle.Render(d.Preview))
	}
	return b.String()
}

func renderSources(results []models.SearchResult, question string) string {
	if len(results) == 0 {
		return dimStyle.Render("No sources.")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sources") + "\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s  score=%.3f\n   %s\n", i+1, r.Source, r.Score, highlightBestSentence(r.ChunkText, question))
	}
	return b.String()
}
