// Package core wires the sync engine together and owns its lifecycle.
package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/sourcegraph/conc"
	"google.golang.org/api/option"

	"github.com/nhle/erp-sync/internal/auth"
	"github.com/nhle/erp-sync/internal/credential"
	"github.com/nhle/erp-sync/internal/docstore"
	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/notify"
	"github.com/nhle/erp-sync/internal/route"
	"github.com/nhle/erp-sync/internal/sink"
	"github.com/nhle/erp-sync/internal/store"
	"github.com/nhle/erp-sync/internal/sync"
)

// Options configures New.
type Options struct {
	Config *model.AppConfig
	Logger *log.Logger

	// Credentials is consulted for the service account and the last ID
	// token. Nil disables both.
	Credentials *credential.Store

	// Store overrides the document store chosen from Config.
	Store docstore.Store
}

// Core holds every long-lived component.
type Core struct {
	Config     *model.AppConfig
	Store      docstore.Store
	Registry   *sync.Registry
	Identities *auth.Identities
	Sink       *sink.Sink
	Inbox      *notify.Inbox
	Router     *route.Router
	Sender     *notify.Sender
	Relay      *notify.Relay
	Mail       *notify.MailPoller

	// Local is the offline store when one is in use.
	Local *store.SQLiteStore

	logger  *log.Logger
	creds   *credential.Store
	cancel  context.CancelFunc
	wg      conc.WaitGroup
	closers []func() error
}

// New builds the engine. It does not sign anyone in; the views stay empty
// until an identity is published.
func New(ctx context.Context, opts Options) (*Core, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = model.LoadConfig(model.DefaultConfigPath()); err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Core{
		Config:     cfg,
		Identities: auth.NewIdentities(),
		Inbox:      notify.NewInbox(),
		logger:     logger,
		creds:      opts.Credentials,
		cancel:     cancel,
	}

	if err := c.openStore(ctx, opts.Store); err != nil {
		cancel()
		c.runClosers()
		return nil, err
	}

	c.Registry = sync.New(c.Store, sync.Options{
		GracePeriod:   cfg.GracePeriod(),
		RetryInterval: cfg.RetryInterval(),
		Logger:        logger,
	})
	c.Sink = sink.New(ctx, c.Registry, c.Identities.Value, sink.Options{Logger: logger})
	c.Router = route.New(c.Sink.Projects(), c.Inbox, route.Options{
		Timeout: cfg.ResolveTimeout(),
		Logger:  logger,
	})

	if cfg.Push.RedisURL != "" {
		relay, err := notify.NewRelay(cfg.Push.RedisURL, cfg.Push.Channel, c.Inbox, logger)
		if err != nil {
			// Push is optional; the rest of the engine works without it.
			logger.Printf("core: push relay disabled: %v", err)
		} else {
			c.Relay = relay
			c.closers = append(c.closers, relay.Close)
			c.wg.Go(func() {
				if err := relay.Run(ctx); err != nil {
					logger.Printf("core: push relay stopped: %v", err)
				}
			})
		}
	}

	if cfg.Push.Mail.Host != "" {
		c.startMail(ctx)
	}

	return c, nil
}

// startMail runs the mailbox poller. A missing password only disables it.
func (c *Core) startMail(ctx context.Context) {
	mc := c.Config.Push.Mail
	var password string
	if c.creds != nil {
		var err error
		if password, err = c.creds.Get(credential.KeyMailPassword); err != nil {
			c.logger.Printf("core: mail poller disabled: %v", err)
			return
		}
	}

	c.Mail = notify.NewMailPoller(notify.MailOptions{
		Host:     mc.Host,
		Port:     mc.Port,
		Username: mc.Username,
		Password: password,
		TLS:      mc.TLS,
		Mailbox:  mc.Mailbox,
		Interval: mc.PollInterval(),
	}, c.Inbox, c.logger)
	mail := c.Mail
	c.wg.Go(func() { mail.Run(ctx) })
}

func (c *Core) openStore(ctx context.Context, override docstore.Store) error {
	cfg := c.Config

	switch {
	case override != nil:
		c.Store = override
		c.Sender, _ = notify.NewSender(ctx, nil)
		return nil

	case cfg.UseOffline():
		path := cfg.Offline.DBPath
		if path == "" {
			path = ":memory:"
		}
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("creating offline db dir: %w", err)
			}
		}

		local, err := store.NewSQLiteStore(path, c.logger)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, local.Close)
		if cfg.Offline.SeedFile != "" {
			if err := local.SeedFile(ctx, cfg.Offline.SeedFile); err != nil {
				return err
			}
		}
		c.Local = local
		c.Store = local
		c.Sender, _ = notify.NewSender(ctx, nil)
		return nil
	}

	opts, err := c.clientOptions()
	if err != nil {
		return err
	}
	fs, err := docstore.NewFirestore(ctx, cfg.Firebase.ProjectID, c.logger, opts...)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, fs.Close)
	c.Store = fs

	sender, err := notify.NewSender(ctx, fs.App())
	if err != nil {
		c.logger.Printf("core: push sender disabled: %v", err)
		sender, _ = notify.NewSender(ctx, nil)
	}
	c.Sender = sender
	return nil
}

// clientOptions picks the Firebase credentials: an explicit file, else a
// service account stored in the keyring, else application default
// credentials.
func (c *Core) clientOptions() ([]option.ClientOption, error) {
	if f := c.Config.Firebase.CredentialsFile; f != "" {
		return []option.ClientOption{option.WithCredentialsFile(f)}, nil
	}
	if c.creds != nil {
		sa, err := c.creds.Get(credential.KeyServiceAccount)
		switch {
		case err == nil:
			return []option.ClientOption{option.WithCredentialsJSON([]byte(sa))}, nil
		case !errors.Is(err, credential.ErrNotFound):
			return nil, err
		}
	}
	return nil, nil
}

// SignIn publishes the identity from an ID token and remembers the token.
func (c *Core) SignIn(rawToken string) (*model.Identity, error) {
	id, err := c.Identities.SignIn(rawToken)
	if err != nil {
		return nil, err
	}
	if c.creds != nil {
		if err := c.creds.Set(credential.KeyIDToken, rawToken); err != nil {
			c.logger.Printf("core: remembering id token: %v", err)
		}
	}
	return id, nil
}

// RestoreSession signs in with the remembered ID token, if any.
func (c *Core) RestoreSession() (*model.Identity, error) {
	if c.creds == nil {
		return nil, credential.ErrNotFound
	}
	raw, err := c.creds.Get(credential.KeyIDToken)
	if err != nil {
		return nil, err
	}
	return c.Identities.SignIn(raw)
}

// SignOut clears the identity and the remembered token.
func (c *Core) SignOut() {
	c.Identities.SignOut()
	if c.creds != nil {
		if err := c.creds.Delete(credential.KeyIDToken); err != nil {
			c.logger.Printf("core: forgetting id token: %v", err)
		}
	}
}

// RegisterDevice stores the push token on the signed-in user's record.
func (c *Core) RegisterDevice(ctx context.Context, token string) error {
	id := c.Identities.Current()
	if id == nil {
		return errors.New("registering device: not signed in")
	}
	if err := notify.RegisterDeviceToken(ctx, c.Store, id.UserID, token); err != nil {
		return err
	}
	if c.creds != nil {
		if err := c.creds.Set(credential.KeyDeviceToken, token); err != nil {
			c.logger.Printf("core: remembering device token: %v", err)
		}
	}
	return nil
}

// Receive ingests a push payload into the inbox.
func (c *Core) Receive(payload map[string]any) model.Notification {
	n := notify.Ingest(payload)
	c.Inbox.Add(n)
	return n
}

// Close shuts everything down in reverse order of construction.
func (c *Core) Close() {
	c.cancel()
	c.wg.Wait()
	if c.Router != nil {
		c.Router.Close()
	}
	if c.Sink != nil {
		c.Sink.Close()
	}
	if c.Registry != nil {
		c.Registry.Close()
	}
	c.runClosers()
}

func (c *Core) runClosers() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Printf("core: close: %v", err)
		}
	}
	c.closers = nil
}
