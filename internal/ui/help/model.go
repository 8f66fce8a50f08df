package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/erp-sync/internal/keys"
	"github.com/nhle/erp-sync/internal/theme"
)

var commands = [][2]string{
	{"signin <token>", "sign in with an ID token"},
	{"as <role> <uid> [tenant,...]", "sign in without a token"},
	{"signout", "sign out"},
	{"push <title> | <body> [| k=v ...]", "deliver a notification to the inbox"},
	{"open <projectId>", "open a project's documents, meetings and financials"},
	{"readall", "mark all notifications read"},
	{"clear", "empty the inbox"},
	{"device <token>", "register this device for push"},
}

// Model is the help overlay: key bindings plus palette commands.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{keys: k, help: h, width: width, height: height}
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	m.help.Width = m.width - 4
	m.help.ShowAll = true

	var b strings.Builder
	cmdStyle := lipgloss.NewStyle().Foreground(theme.ColorBlue)
	for _, c := range commands {
		b.WriteString(cmdStyle.Render(":"+c[0]) + "  " + theme.DimmedStyle.Render(c[1]) + "\n")
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		"",
		titleStyle.Render("Commands"),
		b.String(),
	)

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
