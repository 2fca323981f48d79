package tui

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"patentrag/internal/domain"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Answer(ctx context.Context, query string, threshold float64) (domain.Answer, error)
	Retrieve(ctx context.Context, query string, threshold float64, maxResults int) (domain.RetrievalOutcome, error)
	CanAnswer() bool
	Threshold() float64
	MaxResults() int
}

// answerMsg carries a finished question back into the update loop.
type answerMsg struct {
	query  string
	answer domain.Answer
	err    error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service   RAGPort
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	answer    domain.Answer
	summary   string
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a new TUI model instance.
func New(service RAGPort, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the patents and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	status := "Loaded. Type a question."
	if !service.CanAnswer() {
		status = "No generator configured: showing retrieved passages only."
	}
	return Model{service: service, input: ti, viewport: vp, spinner: sp, summary: summary, status: status}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(query string) tea.Cmd {
	svc := m.service
	return func() tea.Msg {
		ctx := context.Background()
		if svc.CanAnswer() {
			ans, err := svc.Answer(ctx, query, svc.Threshold())
			return answerMsg{query: query, answer: ans, err: err}
		}
		out, err := svc.Retrieve(ctx, query, svc.Threshold(), svc.MaxResults())
		return answerMsg{query: query, answer: fromOutcome(out), err: err}
	}
}

// fromOutcome shows retrieved passages in full when there is no generated text.
func fromOutcome(out domain.RetrievalOutcome) domain.Answer {
	ans := domain.Answer{Confidence: out.AggregateConfidence, TotalFound: out.TotalFound}
	for _, r := range out.Results {
		ans.Sources = append(ans.Sources, domain.Source{
			PassageID: r.PassageID,
			Snippet:   r.Text,
			Percent:   int(math.Round(r.Similarity * 100)),
			Metadata:  r.Metadata,
		})
	}
	return ans
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around answer and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = domain.Answer{}
		} else {
			m.answer = msg.answer
			m.cursor = 0
			m.lastQuery = msg.query
			m.status = fmt.Sprintf("%d source(s) for %q, confidence %.2f", msg.answer.TotalFound, msg.query, msg.answer.Confidence)
		}
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = fmt.Sprintf("Searching for %q", q)
				return m, tea.Batch(m.ask(q), m.spinner.Tick)
			}
		case "down":
			if n := len(m.answer.Sources); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "up":
			if n := len(m.answer.Sources); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Patent RAG")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	statusText := m.status
	if m.busy {
		statusText = m.spinner.View() + " " + statusText
	}
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(statusText)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	var b strings.Builder
	if m.answer.Text != "" {
		b.WriteString(answerStyle.Render(m.answer.Text))
		b.WriteString("\n\n")
	}
	if len(m.answer.Sources) == 0 {
		if b.Len() == 0 {
			return "No answer yet."
		}
		return b.String()
	}
	s := m.answer.Sources[m.cursor]
	section := s.Metadata.SectionTitle
	if section == "" {
		section = "N/A"
	}
	fmt.Fprintf(&b, "Source %d/%d  %d%%  %s p.%d  [%s]\n\n",
		m.cursor+1, len(m.answer.Sources), s.Percent, s.Metadata.DocumentID, s.Metadata.PageNumber, section)
	b.WriteString(highlightBestSentence(s.Snippet, m.lastQuery))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+(?:[.,]\p{N}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
