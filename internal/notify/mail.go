package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
)

// Mail headers a gateway can set to carry deep-link hints.
const (
	HeaderType        = "X-Erpsync-Type"
	HeaderProjectID   = "X-Erpsync-Project-Id"
	HeaderProjectName = "X-Erpsync-Project-Name"
	HeaderTargetTab   = "X-Erpsync-Target-Tab"
	HeaderTaskID      = "X-Erpsync-Task-Id"
	HeaderMeetingID   = "X-Erpsync-Meeting-Id"
	HeaderDeepLink    = "X-Erpsync-Deep-Link"
)

var mailHints = map[string]string{
	HeaderType:        "type",
	HeaderProjectID:   "projectId",
	HeaderProjectName: "projectName",
	HeaderTargetTab:   "targetTab",
	HeaderTaskID:      "taskId",
	HeaderMeetingID:   "meetingId",
	HeaderDeepLink:    "deepLinkPath",
}

// MailOptions configures a MailPoller.
type MailOptions struct {
	Host     string
	Port     string
	Username string
	Password string

	// TLS dials implicit TLS; otherwise STARTTLS is used.
	TLS bool

	Mailbox  string
	Interval time.Duration
}

// MailPoller is the mail fallback for push: it polls a mailbox for unseen
// messages, ingests each into the inbox and flags it seen.
type MailPoller struct {
	opts   MailOptions
	inbox  *Inbox
	logger *log.Logger
}

// NewMailPoller returns a poller. Nothing is dialed until Poll or Run.
func NewMailPoller(opts MailOptions, inbox *Inbox, logger *log.Logger) *MailPoller {
	if opts.Mailbox == "" {
		opts.Mailbox = "INBOX"
	}
	if opts.Port == "" {
		opts.Port = "993"
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &MailPoller{opts: opts, inbox: inbox, logger: logger}
}

// Run polls until ctx ends. Poll failures are logged and retried on the
// next tick.
func (p *MailPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		if n, err := p.Poll(ctx); err != nil {
			p.logger.Printf("notify: mail poll %s: %v", p.opts.Host, err)
		} else if n > 0 {
			p.logger.Printf("notify: ingested %d mail notifications", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *MailPoller) connect() (*imapclient.Client, error) {
	addr := p.opts.Host + ":" + p.opts.Port

	var client *imapclient.Client
	var err error
	if p.opts.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(p.opts.Username, p.opts.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("imap login as %s: %w", p.opts.Username, err)
	}
	return client, nil
}

// Poll ingests every unseen message once and returns how many were added.
func (p *MailPoller) Poll(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	client, err := p.connect()
	if err != nil {
		return 0, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(p.opts.Mailbox, nil).Wait(); err != nil {
		return 0, fmt.Errorf("selecting %s: %w", p.opts.Mailbox, err)
	}

	found, err := client.UIDSearch(&imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}, nil).Wait()
	if err != nil {
		return 0, fmt.Errorf("searching unseen: %w", err)
	}
	uids := found.AllUIDs()
	if len(uids) == 0 {
		return 0, nil
	}

	section := &imap.FetchItemBodySection{Peek: true}
	fetch := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})

	var done []imap.UID
	for {
		msg := fetch.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			p.logger.Printf("notify: reading mail: %v", err)
			continue
		}

		payload, err := MailPayload(buf.FindBodySection(section))
		if err != nil {
			p.logger.Printf("notify: skipping mail uid %d: %v", buf.UID, err)
		} else {
			p.inbox.Add(Ingest(payload))
		}
		// Unparseable mail is flagged too so it is not retried forever.
		done = append(done, buf.UID)
	}
	if err := fetch.Close(); err != nil {
		return 0, fmt.Errorf("fetching mail: %w", err)
	}

	if len(done) > 0 {
		err := client.Store(imap.UIDSetNum(done...), &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagSeen},
		}, nil).Close()
		if err != nil {
			return len(done), fmt.Errorf("flagging mail seen: %w", err)
		}
	}
	return len(done), nil
}

// MailPayload turns an RFC 5322 message into a push payload Ingest
// understands. A plain-text body holding a JSON object is taken as the
// payload itself; otherwise the subject is the title, the text is the body
// and X-Erpsync-* headers carry the hints.
func MailPayload(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty message")
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}
	defer mr.Close()

	var text string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading message part: %w", err)
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		if ct != "" && !strings.HasPrefix(ct, "text/plain") {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, fmt.Errorf("reading message body: %w", err)
		}
		text = strings.TrimSpace(string(body))
		break
	}

	if strings.HasPrefix(text, "{") {
		var payload map[string]any
		if err := json.Unmarshal([]byte(text), &payload); err == nil {
			return payload, nil
		}
	}

	subject, _ := mr.Header.Subject()
	payload := map[string]any{"title": subject, "body": text}
	for header, key := range mailHints {
		if v := strings.TrimSpace(mr.Header.Get(header)); v != "" {
			payload[key] = v
		}
	}
	return payload, nil
}
