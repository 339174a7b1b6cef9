// Package tui is the terminal chat front-end for the answering API.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cloo-solutions/regassist/internal/domain"
)

// Answerer is the TUI-facing subset of the API client.
type Answerer interface {
	Answer(ctx context.Context, query string) (*domain.AnswerResult, error)
}

// Turn is one question with its answer or error.
type Turn struct {
	Question string
	Result   *domain.AnswerResult
	Err      error
}

type answerMsg struct {
	turn Turn
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	answerer Answerer
	timeout  time.Duration
	title    string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	turns   []Turn
	pending string
	status  string
	ready   bool
	width   int
}

// New creates a chat model. A zero timeout leaves requests to the client's own limit.
func New(answerer Answerer, title string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "سوال خود را بنویسید و Enter بزنید"
	ti.Focus()
	ti.CharLimit = 1000

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		answerer: answerer,
		timeout:  timeout,
		title:    title,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Ctrl+C to quit",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Turns returns the conversation so far.
func (m Model) Turns() []Turn { return m.turns }

// Busy reports whether a question is awaiting its answer.
func (m Model) Busy() bool { return m.pending != "" }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, fh := historyBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // title, status, input line, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-fh)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.Type {
		case tea.KeyEnter:
			if m.Busy() {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				m.status = domain.ErrEmptyQuery.Message
				return m, nil
			}
			m.input.Reset()
			m.pending = q
			m.status = "در حال جستجو..."
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.pending = ""
		m.turns = append(m.turns, msg.turn)
		if msg.turn.Err != nil {
			m.status = "Error: " + msg.turn.Err.Error()
		} else {
			m.status = "Ctrl+C to quit"
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	answerer, timeout := m.answerer, m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		res, err := answerer.Answer(ctx, q)
		return answerMsg{turn: Turn{Question: q, Result: res, Err: err}}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render(m.title)
	history := historyBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())

	status := m.status
	if m.Busy() {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + history + "\n" + input + "\n" + statusStyle.Render(status)
}

func (m *Model) refresh() {
	m.viewport.SetContent(RenderHistory(m.turns, m.pending))
	m.viewport.GotoBottom()
}

// RenderHistory lays out every turn, followed by the pending question if any.
func RenderHistory(turns []Turn, pending string) string {
	if len(turns) == 0 && pending == "" {
		return mutedStyle.Render("سوالات خود درباره آیین‌نامه‌ها و مقررات آموزشی را بپرسید.")
	}

	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(questionStyle.Render("سوال: " + t.Question))
		b.WriteString("\n")
		switch {
		case t.Err != nil:
			b.WriteString(errorStyle.Render(t.Err.Error()))
			b.WriteString("\n")
		case t.Result != nil:
			b.WriteString(renderResult(t.Result))
		}
	}
	if pending != "" {
		if len(turns) > 0 {
			b.WriteString("\n")
		}
		b.WriteString(questionStyle.Render("سوال: " + pending))
		b.WriteString("\n")
	}
	return b.String()
}

func renderResult(r *domain.AnswerResult) string {
	var b strings.Builder
	answer := r.Answer
	if r.Abstained {
		answer = mutedStyle.Render(answer)
	}
	b.WriteString(answer)
	b.WriteString("\n")

	if len(r.Sources) > 0 {
		b.WriteString(sourceHeadingStyle.Render("منابع:"))
		b.WriteString("\n")
		for _, s := range r.Sources {
			b.WriteString(fmt.Sprintf("- %s — %s (امتیاز: %.3f)\n", s.RuleTitle, s.SectionTitle, s.Score))
		}
	}
	return b.String()
}

var (
	titleStyle         = lipgloss.NewStyle().Bold(true)
	historyBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	sourceHeadingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
