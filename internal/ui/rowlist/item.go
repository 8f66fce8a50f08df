package rowlist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/erp-sync/internal/theme"
)

// Row is one line of a list: a title plus pre-styled badges and a dimmed
// trailing note.
type Row struct {
	ID     string
	Title  string
	Badges []string
	Note   string

	// Marked rows get a leading dot, used for unread notifications.
	Marked bool
}

// FilterValue returns the string used for filtering.
func (r Row) FilterValue() string { return r.Title }

// rowDelegate implements list.ItemDelegate for Row.
type rowDelegate struct{}

// Height returns the number of lines each item takes.
func (d rowDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d rowDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d rowDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single row.
func (d rowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	row, ok := item.(Row)
	if !ok {
		return
	}

	prefix := " "
	if row.Marked {
		prefix = theme.UnreadStyle.Render("•")
	}

	parts := []string{prefix}
	parts = append(parts, row.Badges...)
	parts = append(parts, row.Title)
	if row.Note != "" {
		parts = append(parts, theme.DimmedStyle.Render(row.Note))
	}
	line := strings.Join(parts, " ")

	maxWidth := m.Width() - 4
	if maxWidth > 0 && lipgloss.Width(line) > maxWidth {
		line = lipgloss.NewStyle().MaxWidth(maxWidth).Render(line)
	}

	if index == m.Index() {
		fmt.Fprint(w, theme.SelectedItemStyle.Render(line))
		return
	}
	fmt.Fprint(w, theme.ItemStyle.Render(line))
}

// RelativeTime renders t relative to now ("3m ago", "2d ago").
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
