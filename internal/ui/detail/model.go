package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/erp-sync/internal/keys"
	"github.com/nhle/erp-sync/internal/theme"
)

// BackMsg signals the parent to leave the detail view.
type BackMsg struct{}

// Field is one labelled value.
type Field struct {
	Label string
	Value string
}

// Section is a titled block of fields or lines under the header.
type Section struct {
	Title  string
	Fields []Field
	Lines  []string
}

// Page is everything the detail view shows.
type Page struct {
	Title    string
	Badges   []string
	Fields   []Field
	Body     string
	Sections []Section
}

// Model is a scrollable detail page.
type Model struct {
	page     *Page
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle()
	return Model{viewport: vp, keys: k, width: width, height: height}
}

// SetPage replaces the page and scrolls to the top.
func (m *Model) SetPage(p *Page) {
	m.page = p
	m.viewport.SetContent(m.render())
	m.viewport.GotoTop()
}

// Page returns the page being shown.
func (m Model) Page() *Page {
	return m.page
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		return m, func() tea.Msg { return BackMsg{} }
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.page == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("Nothing selected")
	}
	return m.viewport.View()
}

func (m Model) render() string {
	if m.page == nil {
		return ""
	}
	p := m.page

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(0, min(m.width-4, 80))))

	lines := []string{titleStyle.Render(p.Title)}
	if len(p.Badges) > 0 {
		lines = append(lines, strings.Join(p.Badges, " "))
	}
	lines = append(lines, "")
	lines = append(lines, renderFields(p.Fields)...)

	if p.Body != "" {
		lines = append(lines, "", separator, "", p.Body)
	}

	for _, s := range p.Sections {
		lines = append(lines, "", separator, "", titleStyle.Render(s.Title))
		lines = append(lines, renderFields(s.Fields)...)
		lines = append(lines, s.Lines...)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderFields(fields []Field) []string {
	width := 0
	for _, f := range fields {
		width = max(width, len(f.Label))
	}

	labelStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		label := fmt.Sprintf("%-*s", width+1, f.Label+":")
		out = append(out, labelStyle.Render(label)+"  "+valStyle.Render(f.Value))
	}
	return out
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	if m.page != nil {
		m.viewport.SetContent(m.render())
	}
}
