// Package tui implements the interactive chat front-end over the
// resolution engine.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/centavobot/centavo/internal/model"
	"github.com/centavobot/centavo/internal/router"
)

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)
	botStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("120"))
	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)
	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(lipgloss.Color("238"))
)

// Config holds what the chat needs to run.
type Config struct {
	Engine *router.Engine
	UserID string
}

// line is one rendered chat line.
type line struct {
	author string
	text   string
}

// Model is the bubbletea model for the chat.
type Model struct {
	engine   *router.Engine
	input    textinput.Model
	viewport viewport.Model
	userID   string
	lastBot  string
	history  []line
	width    int
	height   int
	waiting  bool
	ready    bool
	quitting bool
}

type responsesMsg struct {
	lines []string
}

func newModel(cfg Config) Model {
	input := textinput.New()
	input.Placeholder = "Tell me what you spent, or /help"
	input.CharLimit = 500
	input.Focus()

	return Model{
		engine: cfg.Engine,
		userID: cfg.UserID,
		input:  input,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		inputHeight := 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - inputHeight
		}
		m.input.Width = msg.Width - 4
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			m.history = append(m.history, line{author: "you", text: text})
			m.waiting = true
			m.refreshViewport()
			return m, m.submit(text)
		}

	case responsesMsg:
		m.waiting = false
		for _, text := range msg.lines {
			m.history = append(m.history, line{author: "centavo", text: text})
			m.lastBot = text
		}
		m.refreshViewport()
		return m, nil
	}

	var inputCmd, viewportCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	m.viewport, viewportCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewportCmd)
}

// submit resolves the message off the UI goroutine; model calls can take
// seconds.
func (m Model) submit(text string) tea.Cmd {
	engine := m.engine
	userID := m.userID
	quoted := m.lastBot
	return func() tea.Msg {
		responses := engine.Resolve(context.Background(), model.InboundMessage{
			ReceivedAt: time.Now(),
			UserID:     userID,
			Text:       text,
			QuotedText: quoted,
		})
		return responsesMsg{lines: responses}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "starting..."
	}

	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	footer := m.input.View()
	if m.waiting {
		footer = hintStyle.Render("thinking...")
	}
	b.WriteString(inputStyle.Width(m.width).Render(footer))
	return b.String()
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	var b strings.Builder
	for _, entry := range m.history {
		prefix := botStyle.Render("centavo")
		if entry.author == "you" {
			prefix = userStyle.Render("you")
		}
		b.WriteString(fmt.Sprintf("%s  %s\n\n", prefix, entry.text))
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// Run starts the chat and blocks until the user quits.
func Run(cfg Config) error {
	if cfg.Engine == nil {
		return fmt.Errorf("chat requires an engine")
	}

	program := tea.NewProgram(newModel(cfg), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	return nil
}
