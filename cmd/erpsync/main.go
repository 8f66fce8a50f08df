// Command erpsync runs the sync engine behind a terminal console, and
// carries a few developer commands around it.
//
//	erpsync [--offline] [--seed fixtures.json] [--token id-token]
//	erpsync send-push --title T [--body B] [--token device] [--project p1] ...
//	erpsync set-credentials service-account.json
//	erpsync set-mail-password < password.txt
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"

	"github.com/nhle/erp-sync/internal/app"
	"github.com/nhle/erp-sync/internal/core"
	"github.com/nhle/erp-sync/internal/credential"
	"github.com/nhle/erp-sync/internal/model"
	"github.com/nhle/erp-sync/internal/notify"
)

func main() {
	args := os.Args[1:]
	cmd := "console"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "console":
		err = runConsole(ctx, args)
	case "send-push":
		err = runSendPush(ctx, args)
	case "set-credentials":
		err = runSetCredentials(args)
	case "set-mail-password":
		err = runSetMailPassword()
	default:
		err = fmt.Errorf("unknown command %q (console, send-push, set-credentials, set-mail-password)", cmd)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// commonFlags are shared by every command that starts the engine.
type commonFlags struct {
	configPath string
	offline    bool
	dbPath     string
	seedFile   string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", model.DefaultConfigPath(), "config file")
	fs.BoolVar(&c.offline, "offline", false, "use the local SQLite store even when a Firebase project is configured")
	fs.StringVar(&c.dbPath, "db", "", "offline database path (\":memory:\" for a throwaway store)")
	fs.StringVar(&c.seedFile, "seed", "", "fixture JSON loaded into the offline store")
}

func (c *commonFlags) load() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.offline {
		cfg.Firebase.ProjectID = ""
	}
	if c.dbPath != "" {
		cfg.Offline.DBPath = c.dbPath
	}
	if c.seedFile != "" {
		cfg.Offline.SeedFile = c.seedFile
	}
	return cfg, nil
}

// openCredentials falls back to an in-memory keyring when no system
// keyring is reachable.
func openCredentials(logger *log.Logger) *credential.Store {
	creds, err := credential.Open()
	if err != nil {
		logger.Printf("keyring unavailable, secrets will not persist: %v", err)
		return credential.NewMemory()
	}
	return creds
}

func runConsole(ctx context.Context, args []string) error {
	var common commonFlags
	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	common.register(fs)
	token := fs.String("token", "", "ID token to sign in with")
	logPath := fs.String("log", filepath.Join(os.TempDir(), "erpsync.log"), "log file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}

	// The terminal belongs to the console; logs go to a file.
	logFile, err := tea.LogToFile(*logPath, "erpsync")
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()
	logger := log.Default()

	c, err := core.New(ctx, core.Options{
		Config:      cfg,
		Logger:      logger,
		Credentials: openCredentials(logger),
	})
	if err != nil {
		return err
	}
	defer c.Close()

	switch {
	case *token != "":
		if _, err := c.SignIn(*token); err != nil {
			return err
		}
	default:
		if _, err := c.RestoreSession(); err != nil && !errors.Is(err, credential.ErrNotFound) {
			logger.Printf("restoring session: %v", err)
		}
	}

	p := tea.NewProgram(app.New(c), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func runSendPush(ctx context.Context, args []string) error {
	var common commonFlags
	fs := flag.NewFlagSet("send-push", flag.ContinueOnError)
	common.register(fs)

	var p notify.Push
	var hints struct{ project, projectName, tab, task, meeting, link string }
	fs.StringVar(&p.Title, "title", "", "notification title")
	fs.StringVar(&p.Body, "body", "", "notification body")
	fs.StringVar(&p.Type, "type", model.NotificationInfo, "notification type")
	fs.StringVar(&hints.project, "project", "", "projectId hint")
	fs.StringVar(&hints.projectName, "project-name", "", "projectName hint")
	fs.StringVar(&hints.tab, "tab", "", "targetTab hint")
	fs.StringVar(&hints.task, "task", "", "taskId hint")
	fs.StringVar(&hints.meeting, "meeting", "", "meetingId hint")
	fs.StringVar(&hints.link, "link", "", "deepLinkPath hint")
	token := fs.String("token", "", "device token to send to over FCM; empty publishes on the relay")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if p.Title == "" {
		return errors.New("send-push: --title is required")
	}

	opt := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}
	p.Hints = model.DeepLinkHints{
		ProjectID:    opt(hints.project),
		ProjectName:  opt(hints.projectName),
		TargetTab:    opt(hints.tab),
		TaskID:       opt(hints.task),
		MeetingID:    opt(hints.meeting),
		DeepLinkPath: opt(hints.link),
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}

	if *token == "" {
		if cfg.Push.RedisURL == "" {
			return errors.New("send-push: no --token and no push.redis_url configured")
		}
		relay, err := notify.NewRelay(cfg.Push.RedisURL, cfg.Push.Channel, nil, log.Default())
		if err != nil {
			return err
		}
		defer relay.Close()
		if err := relay.Publish(ctx, p); err != nil {
			return err
		}
		fmt.Printf("published on %s\n", cfg.Push.Channel)
		return nil
	}

	c, err := core.New(ctx, core.Options{
		Config:      cfg,
		Logger:      log.Default(),
		Credentials: openCredentials(log.Default()),
	})
	if err != nil {
		return err
	}
	defer c.Close()

	id, err := c.Sender.Send(ctx, *token, p)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runSetCredentials(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: erpsync set-credentials <service-account.json>")
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading service account: %w", err)
	}
	creds, err := credential.Open()
	if err != nil {
		return err
	}
	if err := creds.Set(credential.KeyServiceAccount, string(raw)); err != nil {
		return err
	}
	fmt.Println("service account stored in keyring")
	return nil
}

func runSetMailPassword() error {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("set-mail-password: empty password on stdin")
	}
	creds, err := credential.Open()
	if err != nil {
		return err
	}
	if err := creds.Set(credential.KeyMailPassword, password); err != nil {
		return err
	}
	fmt.Println("mail password stored in keyring")
	return nil
}
