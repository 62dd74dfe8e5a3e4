package tui

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gdd-rag/internal/models"
	"gdd-rag/internal/session"
)

// Service is the TUI-facing subset of session.Session.
type Service interface {
	Upload(ctx context.Context, files []session.File) (session.UploadReport, error)
	LoadSamples(ctx context.Context) (session.UploadReport, error)
	Documents() []session.DocumentInfo
	Document(name string) (models.Document, error)
	Delete(ctx context.Context, name string) error
	Search(ctx context.Context, question string, topK int) ([]models.SearchResult, error)
	Ask(ctx context.Context, question string) (*models.Answer, error)
}

// Model is the Bubble Tea model for the assistant.
type Model struct {
	service  Service
	input    textinput.Model
	viewport viewport.Model
	title    string
	output   string
	status   string
	busy     bool
	ready    bool
	timeout  time.Duration
	topK     int
}

// New creates the model. timeout bounds each command; topK is used by /search.
func New(service Service, timeout time.Duration, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your design docs, or /help"
	ti.Focus()
	ti.CharLimit = 0
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return Model{
		service:  service,
		input:    ti,
		viewport: viewport.New(0, 0),
		title:    "Help",
		output:   helpText,
		status:   "Load documents with /add or /samples, then ask a question.",
		timeout:  timeout,
		topK:     topK,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, title, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.output)
		return m, nil

	case resultMsg:
		m.busy = false
		if msg.title != "" {
			m.title = msg.title
		}
		if msg.body != "" || msg.err == nil {
			m.output = msg.body
		}
		switch {
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		case msg.status != "":
			m.status = msg.status
		default:
			m.status = "Done."
		}
		m.viewport.SetContent(m.output)
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true
			m.status = "Working..."
			return m, m.run(parseCommand(line))
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Game Design Knowledge Assistant")
	title := titleStyle.Render(m.title)
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + title + "\n" + results + "\n" + input + "\n" + status
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	wordRe         = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence emphasises the sentence sharing the most words with query.
func highlightBestSentence(text, query string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return text
	}
	sentences := splitSentences(text)
	queryWords := wordSet(query)
	if len(queryWords) == 0 {
		return text
	}

	best, bestScore := 0, -1
	for i, s := range sentences {
		score := 0
		for w := range wordSet(s) {
			if _, ok := queryWords[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
		if i == best {
			sentences[i] = highlightStyle.Render(sentences[i])
		}
	}
	return strings.Join(sentences, " ")
}

// splitSentences cuts text after every ".", "!" or "?". Trailing text without
// closing punctuation is kept as a final sentence.
func splitSentences(text string) []string {
	var sentences []string
	end := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		sentences = append(sentences, text[loc[0]:loc[1]])
		end = loc[1]
	}
	if tail := strings.TrimSpace(text[end:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func wordSet(s string) map[string]struct{} {
	words := wordRe.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
