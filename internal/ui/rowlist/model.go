package rowlist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/erp-sync/internal/keys"
	"github.com/nhle/erp-sync/internal/theme"
)

// SelectedMsg is sent when the user picks a row.
type SelectedMsg struct {
	List string
	ID   string
}

// Model is a titled, navigable list of rows.
type Model struct {
	name   string
	list   list.Model
	keys   *keys.KeyMap
	empty  string
	err    string
	width  int
	height int
}

// New creates a list named name. The name is echoed back in SelectedMsg.
func New(name, title string, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, rowDelegate{}, width, height)
	l.Title = title
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		name:   name,
		list:   l,
		keys:   k,
		empty:  "Nothing here yet.",
		width:  width,
		height: height,
	}
}

// SetRows replaces the rows, keeping the cursor where possible.
func (m *Model) SetRows(rows []Row) tea.Cmd {
	items := make([]list.Item, len(rows))
	for i, r := range rows {
		items[i] = r
	}
	return m.list.SetItems(items)
}

// SetEmpty sets the text shown when there are no rows.
func (m *Model) SetEmpty(text string) {
	m.empty = text
}

// SetError shows err above the rows; "" clears it.
func (m *Model) SetError(err string) {
	m.err = err
}

// Selected returns the focused row.
func (m Model) Selected() (Row, bool) {
	row, ok := m.list.SelectedItem().(Row)
	return row, ok
}

// Len returns the number of rows.
func (m Model) Len() int {
	return len(m.list.Items())
}

// Update handles navigation and selection.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Select) {
		row, ok := m.Selected()
		if !ok {
			return m, nil
		}
		name := m.name
		return m, func() tea.Msg {
			return SelectedMsg{List: name, ID: row.ID}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list, or the empty state.
func (m Model) View() string {
	var banner string
	if m.err != "" {
		banner = theme.ErrorStyle.Padding(0, 1).Render(m.err)
	}

	if len(m.list.Items()) == 0 {
		empty := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height-lipgloss.Height(banner)).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render(m.empty)
		if banner == "" {
			return empty
		}
		return lipgloss.JoinVertical(lipgloss.Left, banner, empty)
	}

	if banner == "" {
		return m.list.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, banner, m.list.View())
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-1)
}
