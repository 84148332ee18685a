package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"repochat/internal/retriever"
)

// asker answers a question within a session.
type asker interface {
	Ask(ctx context.Context, sessionID, question string) (*retriever.Result, error)
}

type chatRole string

const (
	roleUser      chatRole = "user"
	roleAssistant chatRole = "assistant"
	roleError     chatRole = "error"
)

type chatMessage struct {
	role    chatRole
	content string
	sources []retriever.Source
}

// answerMsg carries the result of one Ask.
type answerMsg struct {
	res *retriever.Result
	err error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginTop(1)
	botStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170")).MarginTop(1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	borderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

// chatModel is the interactive chat TUI.
type chatModel struct {
	ctx       context.Context
	asker     asker
	sessionID string
	source    string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	history []chatMessage
	waiting bool
	ready   bool
	width   int
}

func newChatModel(ctx context.Context, a asker, sessionID, source string) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about the repository..."
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return chatModel{
		ctx:       ctx,
		asker:     a,
		sessionID: sessionID,
		source:    source,
		input:     ti,
		spinner:   sp,
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			question := strings.TrimSpace(m.input.Value())
			if question == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			m.history = append(m.history, chatMessage{role: roleUser, content: question})
			m.waiting = true
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(question))
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.history = append(m.history, chatMessage{role: roleError, content: msg.err.Error()})
		} else {
			m.history = append(m.history, chatMessage{
				role:    roleAssistant,
				content: msg.res.Answer,
				sources: msg.res.Sources,
			})
		}
		m.refresh()
		return m, nil

	case tea.WindowSizeMsg:
		const chrome = 6 // header, input box and footer
		m.width = msg.Width
		height := max(msg.Height-chrome, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.input.Width = max(msg.Width-8, 10)
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(max(msg.Width-4, 20)),
		)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.waiting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m chatModel) ask(question string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.asker.Ask(m.ctx, m.sessionID, question)
		return answerMsg{res: res, err: err}
	}
}

// refresh re-renders the history into the viewport.
func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m chatModel) renderHistory() string {
	var sb strings.Builder
	for _, msg := range m.history {
		switch msg.role {
		case roleUser:
			sb.WriteString(userStyle.Render("You") + "\n")
			sb.WriteString(msg.content + "\n")
		case roleError:
			sb.WriteString(errorStyle.Render("Error: "+msg.content) + "\n")
		default:
			sb.WriteString(botStyle.Render("repochat") + "\n")
			sb.WriteString(m.renderMarkdown(msg.content))
			if len(msg.sources) > 0 {
				paths := make([]string, len(msg.sources))
				for i, s := range msg.sources {
					paths[i] = s.Path
				}
				sb.WriteString(mutedStyle.Render("sources: "+strings.Join(paths, ", ")) + "\n")
			}
		}
	}
	return sb.String()
}

// renderMarkdown falls back to the raw text when no renderer is ready or it fails.
func (m chatModel) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text + "\n"
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

func (m chatModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	header := titleStyle.Render("repochat") + mutedStyle.Render(fmt.Sprintf("  session %s  %s", m.sessionID, m.source))

	input := m.input.View()
	if m.waiting {
		input = m.spinner.View() + " Thinking..."
	}
	footer := mutedStyle.Render("enter: ask  pgup/pgdn: scroll  esc: quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		borderStyle.Width(max(m.width-2, 10)).Render(input),
		footer,
	)
}
