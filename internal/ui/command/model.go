package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/erp-sync/internal/theme"
)

// CommandMsg is emitted when the user runs a command.
type CommandMsg struct {
	Name string
	Args string
}

// CancelMsg is emitted when the palette is dismissed.
type CancelMsg struct{}

// Parse splits a palette line into its command name and the rest.
func Parse(line string) CommandMsg {
	line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), ":"))
	name, args, _ := strings.Cut(line, " ")
	return CommandMsg{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}
}

// Model is the command palette.
type Model struct {
	input   textinput.Model
	history []string
	pos     int
	width   int
}

// New creates a new command palette model.
func New(width int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command, ? lists them"
	ti.Prompt = ": "
	ti.Width = width - 6

	return Model{input: ti, width: width}
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, func() tea.Msg { return CancelMsg{} }
			}
			m.history = append(m.history, line)
			m.pos = len(m.history)
			return m, func() tea.Msg { return Parse(line) }

		case "esc":
			m.input.Reset()
			return m, func() tea.Msg { return CancelMsg{} }

		case "up":
			if m.pos > 0 {
				m.pos--
				m.input.SetValue(m.history[m.pos])
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.pos < len(m.history)-1 {
				m.pos++
				m.input.SetValue(m.history[m.pos])
				m.input.CursorEnd()
			} else {
				m.pos = len(m.history)
				m.input.Reset()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	return theme.PanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Command"),
			m.input.View(),
		))
}

// SetSize updates the palette width.
func (m *Model) SetSize(width int) {
	m.width = width
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
