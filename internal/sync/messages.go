package sync

import (
	tea "github.com/charmbracelet/bubbletea"
)

// SyncStatusMsg is a tea.Msg carrying a status change of one key together
// with the current statuses of all keys.
type SyncStatusMsg struct {
	Changed  SyncStatus
	Statuses []SyncStatus
}

// WaitForStatus returns a tea.Cmd that waits for the next status change.
// Call it again after handling a SyncStatusMsg to keep listening. It yields
// nil once the registry is closed.
func (r *Registry) WaitForStatus() tea.Cmd {
	return func() tea.Msg {
		st, ok := <-r.statusCh
		if !ok {
			return nil
		}
		return SyncStatusMsg{Changed: st, Statuses: r.Statuses()}
	}
}
