package notify

import (
	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/observable"
)

// Inbox is the in-memory, most-recent-first notification list. It is not
// persisted. Every change publishes a fresh slice; published slices are
// never modified afterwards.
type Inbox struct {
	items *observable.Value[[]model.Notification]
}

// NewInbox returns an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{items: observable.NewWith([]model.Notification{})}
}

// Items is the observable list.
func (in *Inbox) Items() *observable.Value[[]model.Notification] {
	return in.items
}

// List returns the current list.
func (in *Inbox) List() []model.Notification {
	list, _ := in.items.Get()
	return list
}

// Add puts n at the top of the list.
func (in *Inbox) Add(n model.Notification) {
	in.items.Update(func(cur []model.Notification, _ bool) []model.Notification {
		out := make([]model.Notification, 0, len(cur)+1)
		out = append(out, n)
		return append(out, cur...)
	})
}

// Get returns the notification with id.
func (in *Inbox) Get(id string) (model.Notification, bool) {
	for _, n := range in.List() {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

// MarkRead marks one notification read. Marking an already read or unknown
// notification changes nothing.
func (in *Inbox) MarkRead(id string) {
	in.items.Update(func(cur []model.Notification, _ bool) []model.Notification {
		for i, n := range cur {
			if n.ID == id && !n.Read {
				out := append([]model.Notification(nil), cur...)
				out[i].Read = true
				return out
			}
		}
		return cur
	})
}

// MarkAllRead marks every notification read.
func (in *Inbox) MarkAllRead() {
	in.items.Update(func(cur []model.Notification, _ bool) []model.Notification {
		out := make([]model.Notification, len(cur))
		copy(out, cur)
		for i := range out {
			out[i].Read = true
		}
		return out
	})
}

// Clear empties the inbox.
func (in *Inbox) Clear() {
	in.items.Set([]model.Notification{})
}

// Unread returns the number of unread notifications.
func (in *Inbox) Unread() int {
	n := 0
	for _, it := range in.List() {
		if !it.Read {
			n++
		}
	}
	return n
}
