package signin

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/theme"
)

// SignInMsg is dispatched when the form is submitted.
type SignInMsg struct {
	Identity *model.Identity
}

// CancelMsg is dispatched when the form is aborted.
type CancelMsg struct{}

// formBindings keeps field values on the heap so huh's Value pointers stay
// valid across model copies.
type formBindings struct {
	role    model.Role
	userID  string
	tenants string
}

// Model picks an identity to view the workspace as.
type Model struct {
	form  *huh.Form
	fb    *formBindings
	users []model.User
	width int
}

// New creates the form model.
func New(width int) Model {
	return Model{fb: &formBindings{role: model.RoleAdmin}, width: width}
}

// SetUsers offers known users as a shortcut.
func (m *Model) SetUsers(users []model.User) {
	m.users = users
}

// Start resets the form from the current identity.
func (m *Model) Start(current *model.Identity) tea.Cmd {
	*m.fb = formBindings{role: model.RoleAdmin}
	if current != nil {
		m.fb.role = current.Role
		m.fb.userID = current.UserID
		m.fb.tenants = strings.Join(current.TenantIDs, ",")
	}
	m.form = m.build()
	return m.form.Init()
}

func (m *Model) build() *huh.Form {
	roles := make([]huh.Option[model.Role], len(model.Roles))
	for i, r := range model.Roles {
		roles[i] = huh.NewOption(r.DisplayName(), r)
	}

	fields := []huh.Field{
		huh.NewSelect[model.Role]().
			Title("Role").
			Options(roles...).
			Value(&m.fb.role),
	}

	if len(m.users) > 0 {
		opts := []huh.Option[string]{huh.NewOption("(type an id)", "")}
		for _, u := range m.users {
			opts = append(opts, huh.NewOption(u.Name+" <"+u.Email+"> "+u.Role.DisplayName(), u.ID))
		}
		fields = append(fields, huh.NewSelect[string]().
			Title("Known user").
			Options(opts...).
			Value(&m.fb.userID))
	}

	fields = append(fields,
		huh.NewInput().
			Title("User ID").
			Value(&m.fb.userID).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("user id is required")
				}
				return nil
			}),
		huh.NewInput().
			Title("Tenants").
			Description("comma separated, empty for all").
			Value(&m.fb.tenants),
	)

	return huh.NewForm(huh.NewGroup(fields...)).WithShowHelp(true)
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		id := m.identity()
		m.form = nil
		return m, func() tea.Msg { return SignInMsg{Identity: id} }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

func (m Model) identity() *model.Identity {
	id := &model.Identity{
		UserID: strings.TrimSpace(m.fb.userID),
		Role:   m.fb.role,
	}
	for _, t := range strings.Split(m.fb.tenants, ",") {
		if t = strings.TrimSpace(t); t != "" {
			id.TenantIDs = append(id.TenantIDs, t)
		}
	}
	return id
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Sign in as")

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(title + "\n" + m.form.View())
}

// SetSize updates the form width.
func (m *Model) SetSize(width int) {
	m.width = width
	if m.form != nil {
		m.form = m.form.WithWidth(width - 4)
	}
}
