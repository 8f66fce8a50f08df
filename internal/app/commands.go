package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/notify"
	"github.com/nhle/erp-sync/internal/ui/command"
)

const commandTimeout = 10 * time.Second

// execute runs a palette command.
func (m *Model) execute(cmd command.CommandMsg) tea.Cmd {
	switch cmd.Name {
	case "signin":
		id, err := m.core.SignIn(cmd.Args)
		if err != nil {
			m.notice = "sign in: " + err.Error()
			return nil
		}
		m.notice = fmt.Sprintf("signed in as %s (%s)", id.UserID, id.Role.DisplayName())

	case "as":
		id, err := ParseIdentity(cmd.Args)
		if err != nil {
			m.notice = err.Error()
			return nil
		}
		m.core.Identities.SignInAs(id)
		m.notice = fmt.Sprintf("signed in as %s (%s)", id.UserID, id.Role.DisplayName())

	case "signout":
		m.core.SignOut()
		m.notice = "signed out"

	case "push":
		p, err := ParsePush(cmd.Args)
		if err != nil {
			m.notice = err.Error()
			return nil
		}
		m.tab = TabNotifications
		if m.core.Relay == nil {
			m.core.Receive(p.Payload())
			m.notice = "delivered " + p.Title
			return nil
		}
		relay := m.core.Relay
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			if err := relay.Publish(ctx, p); err != nil {
				return noticeMsg("push: " + err.Error())
			}
			return noticeMsg("published " + p.Title)
		}

	case "open":
		if cmd.Args == "" {
			m.notice = "usage: open <projectId>"
			return nil
		}
		return m.openProject(cmd.Args, model.DefaultSubTab, "", "")

	case "readall":
		m.core.Inbox.MarkAllRead()

	case "clear":
		m.closeDetail()
		m.core.Inbox.Clear()

	case "device":
		token := cmd.Args
		c := m.core
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			if err := c.RegisterDevice(ctx, token); err != nil {
				return noticeMsg("device: " + err.Error())
			}
			return noticeMsg("device registered")
		}

	case "quit", "q":
		m.shutdown()
		return tea.Quit

	default:
		m.notice = fmt.Sprintf("unknown command %q, ? lists them", cmd.Name)
	}
	return nil
}

// ParseIdentity reads "<role> <uid> [tenant,...]".
func ParseIdentity(args string) (*model.Identity, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return nil, errors.New("usage: as <role> <uid> [tenant,...]")
	}
	role, err := model.ParseRole(fields[0])
	if err != nil {
		return nil, err
	}
	id := &model.Identity{UserID: fields[1], Role: role}
	if len(fields) > 2 {
		for _, t := range strings.Split(fields[2], ",") {
			if t = strings.TrimSpace(t); t != "" {
				id.TenantIDs = append(id.TenantIDs, t)
			}
		}
	}
	return id, nil
}

// ParsePush reads "<title> | <body> [| key=value ...]". Keys are the
// deep-link hint names (projectId, projectName, targetTab, taskId,
// meetingId, deepLinkPath) plus type.
func ParsePush(args string) (notify.Push, error) {
	parts := strings.Split(args, "|")
	title := strings.TrimSpace(parts[0])
	if title == "" {
		return notify.Push{}, errors.New("usage: push <title> | <body> [| key=value ...]")
	}

	p := notify.Push{Title: title, Type: model.NotificationInfo}
	if len(parts) > 1 {
		p.Body = strings.TrimSpace(parts[1])
	}
	if len(parts) < 3 {
		return p, nil
	}

	for _, kv := range strings.Fields(strings.Join(parts[2:], " ")) {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || v == "" {
			return notify.Push{}, fmt.Errorf("push: bad hint %q", kv)
		}
		switch k {
		case "type":
			p.Type = v
		case "projectId":
			p.Hints.ProjectID = &v
		case "projectName":
			p.Hints.ProjectName = &v
		case "targetTab":
			p.Hints.TargetTab = &v
		case "taskId":
			p.Hints.TaskID = &v
		case "meetingId":
			p.Hints.MeetingID = &v
		case "deepLinkPath":
			p.Hints.DeepLinkPath = &v
		default:
			return notify.Push{}, fmt.Errorf("push: unknown hint %q", k)
		}
	}
	return p, nil
}
