// Package notify turns push payloads into notification records and keeps
// the in-memory inbox the notification screen reads.
package notify

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/erp-sync/internal/model"
)

// DefaultTitle is used when a payload carries no title anywhere.
const DefaultTitle = "New Notification"

// Ingest builds a notification from an arbitrary push payload. It never
// fails: missing fields get defaults and unknown keys are dropped.
//
// Title and body are looked up in the APNs alert, then the FCM
// notification block, then the top level. Deep-link hints are read from
// the top level first and then from the FCM data block.
func Ingest(payload map[string]any) model.Notification {
	top := model.Fields(payload)
	aps := top.Map("aps")
	alert := aps.Map("alert")
	fcm := top.Map("notification")
	data := top.Map("data")

	title := first(alert.String("title"), fcm.String("title"), top.String("title"), data.String("title"))
	if title == "" {
		title = DefaultTitle
	}
	// A plain-string APNs alert is the body.
	body := first(alert.String("body"), aps.String("alert"), fcm.String("body"), top.String("body"), data.String("body"))

	typ := first(top.String("type"), data.String("type"))
	if typ == "" {
		typ = model.NotificationInfo
	}

	hint := func(name string) *string {
		v := first(top.String(name), data.String(name))
		if v == "" {
			return nil
		}
		return &v
	}

	return model.Notification{
		ID:        uuid.New().String(),
		Title:     title,
		Body:      body,
		Type:      typ,
		CreatedAt: time.Now(),
		Hints: model.DeepLinkHints{
			ProjectID:    hint("projectId"),
			ProjectName:  hint("projectName"),
			TargetTab:    hint("targetTab"),
			TaskID:       hint("taskId"),
			MeetingID:    hint("meetingId"),
			DeepLinkPath: hint("deepLinkPath"),
		},
	}
}

func first(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
