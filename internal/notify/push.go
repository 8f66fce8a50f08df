package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"

	"github.com/nhle/erp-sync/internal/docstore"
	"github.com/nhle/erp-sync/internal/model"
)

// ErrSenderDisabled is returned by a Sender built without Firebase
// credentials.
var ErrSenderDisabled = errors.New("push sender disabled: no firebase credentials")

// Push is an outgoing notification.
type Push struct {
	Title string
	Body  string
	Type  string
	Hints model.DeepLinkHints
}

// Data returns the FCM data block: the type tag plus every set hint under
// the key names Ingest reads.
func (p Push) Data() map[string]string {
	data := map[string]string{}
	if p.Type != "" {
		data["type"] = p.Type
	}
	set := func(key string, v *string) {
		if v != nil && *v != "" {
			data[key] = *v
		}
	}
	set("projectId", p.Hints.ProjectID)
	set("projectName", p.Hints.ProjectName)
	set("targetTab", p.Hints.TargetTab)
	set("taskId", p.Hints.TaskID)
	set("meetingId", p.Hints.MeetingID)
	set("deepLinkPath", p.Hints.DeepLinkPath)
	return data
}

// Payload returns the push in the APNs-style shape the relay carries.
func (p Push) Payload() map[string]any {
	out := map[string]any{
		"aps": map[string]any{
			"alert": map[string]any{"title": p.Title, "body": p.Body},
		},
	}
	for k, v := range p.Data() {
		out[k] = v
	}
	return out
}

// Sender delivers pushes through Firebase Cloud Messaging.
type Sender struct {
	client *messaging.Client
}

// NewSender opens the messaging client of app. A nil app yields a disabled
// sender whose Send returns ErrSenderDisabled.
func NewSender(ctx context.Context, app *firebase.App) (*Sender, error) {
	if app == nil {
		return &Sender{}, nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening messaging client: %w", err)
	}
	return &Sender{client: client}, nil
}

// Enabled reports whether the sender can deliver.
func (s *Sender) Enabled() bool {
	return s != nil && s.client != nil
}

// Send delivers p to one device token and returns the message id.
func (s *Sender) Send(ctx context.Context, token string, p Push) (string, error) {
	if !s.Enabled() {
		return "", ErrSenderDisabled
	}
	if token == "" {
		return "", errors.New("empty device token")
	}

	id, err := s.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Data: p.Data(),
	})
	if err != nil {
		return "", fmt.Errorf("sending push: %w", err)
	}
	return id, nil
}

// RegisterDeviceToken stores the device's push token on the user record.
func RegisterDeviceToken(ctx context.Context, store docstore.Store, userID, token string) error {
	if userID == "" {
		return errors.New("registering device token: no signed-in user")
	}
	if token == "" {
		return errors.New("registering device token: empty token")
	}

	err := store.Set(ctx, model.CollectionUsers+"/"+userID, model.Fields{
		"fcm_token":  token,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("registering device token: %w", err)
	}
	return nil
}
