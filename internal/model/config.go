package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SyncConfig tunes the subscription registry.
type SyncConfig struct {
	// GracePeriodSec is how long a listener with no subscribers stays open
	// before it is torn down.
	GracePeriodSec int `mapstructure:"grace_period_sec" yaml:"grace_period_sec"`

	// RetryIntervalSec is the delay before a listener that failed with a
	// transient error is re-opened.
	RetryIntervalSec int `mapstructure:"retry_interval_sec" yaml:"retry_interval_sec"`
}

// RouterConfig tunes the notification router.
type RouterConfig struct {
	// ResolveTimeoutMs bounds how long a notification waits for its target
	// project to appear in the synchronized collection.
	ResolveTimeoutMs int `mapstructure:"resolve_timeout_ms" yaml:"resolve_timeout_ms"`
}

// FirebaseConfig points at the managed document store.
type FirebaseConfig struct {
	ProjectID string `mapstructure:"project_id" yaml:"project_id"`

	// CredentialsFile is a service-account JSON file. When empty the
	// credentials are read from the system keyring.
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
}

// OfflineConfig configures the local SQLite document store used when no
// Firebase project is configured.
type OfflineConfig struct {
	DBPath   string `mapstructure:"db_path" yaml:"db_path"`
	SeedFile string `mapstructure:"seed_file" yaml:"seed_file"`
}

// PushConfig configures push delivery.
type PushConfig struct {
	// RedisURL enables the push relay when set.
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`
	Channel  string `mapstructure:"channel" yaml:"channel"`

	Mail MailConfig `mapstructure:"mail" yaml:"mail"`
}

// MailConfig enables the IMAP notification poller when Host is set. The
// password is read from the keyring.
type MailConfig struct {
	Host            string `mapstructure:"host" yaml:"host"`
	Port            string `mapstructure:"port" yaml:"port"`
	Username        string `mapstructure:"username" yaml:"username"`
	TLS             bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox         string `mapstructure:"mailbox" yaml:"mailbox"`
	PollIntervalSec int    `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// PollInterval returns the mail polling interval.
func (m MailConfig) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalSec) * time.Second
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Sync     SyncConfig     `mapstructure:"sync" yaml:"sync"`
	Router   RouterConfig   `mapstructure:"router" yaml:"router"`
	Firebase FirebaseConfig `mapstructure:"firebase" yaml:"firebase"`
	Offline  OfflineConfig  `mapstructure:"offline" yaml:"offline"`
	Push     PushConfig     `mapstructure:"push" yaml:"push"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
}

// GracePeriod returns the listener teardown grace period.
func (c *AppConfig) GracePeriod() time.Duration {
	return time.Duration(c.Sync.GracePeriodSec) * time.Second
}

// RetryInterval returns the transient-failure retry delay.
func (c *AppConfig) RetryInterval() time.Duration {
	return time.Duration(c.Sync.RetryIntervalSec) * time.Second
}

// ResolveTimeout returns the notification resolution timeout.
func (c *AppConfig) ResolveTimeout() time.Duration {
	return time.Duration(c.Router.ResolveTimeoutMs) * time.Millisecond
}

// UseOffline reports whether the local document store should be used.
func (c *AppConfig) UseOffline() bool {
	return c.Firebase.ProjectID == ""
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/erpsync/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "erpsync")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Sync: SyncConfig{
			GracePeriodSec:   30,
			RetryIntervalSec: 5,
		},
		Router: RouterConfig{
			ResolveTimeoutMs: 3000,
		},
		Offline: OfflineConfig{
			DBPath: filepath.Join(configDir(), "offline.db"),
		},
		Push: PushConfig{
			Channel: "erpsync:push",
			Mail: MailConfig{
				Port:            "993",
				TLS:             true,
				Mailbox:         "INBOX",
				PollIntervalSec: 60,
			},
		},
		Display: DisplayConfig{
			Theme: "default",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// ERPSYNC_* environment variables override file values (e.g.
// ERPSYNC_FIREBASE_PROJECT_ID). If the file does not exist, it returns the
// defaults with environment overrides applied.
func LoadConfig(path string) (*AppConfig, error) {
	defaults := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ERPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can see it during Unmarshal.
	v.SetDefault("sync.grace_period_sec", defaults.Sync.GracePeriodSec)
	v.SetDefault("sync.retry_interval_sec", defaults.Sync.RetryIntervalSec)
	v.SetDefault("router.resolve_timeout_ms", defaults.Router.ResolveTimeoutMs)
	v.SetDefault("firebase.project_id", "")
	v.SetDefault("firebase.credentials_file", "")
	v.SetDefault("offline.db_path", defaults.Offline.DBPath)
	v.SetDefault("offline.seed_file", "")
	v.SetDefault("push.redis_url", "")
	v.SetDefault("push.channel", defaults.Push.Channel)
	v.SetDefault("push.mail.host", "")
	v.SetDefault("push.mail.port", defaults.Push.Mail.Port)
	v.SetDefault("push.mail.username", "")
	v.SetDefault("push.mail.tls", defaults.Push.Mail.TLS)
	v.SetDefault("push.mail.mailbox", defaults.Push.Mail.Mailbox)
	v.SetDefault("push.mail.poll_interval_sec", defaults.Push.Mail.PollIntervalSec)
	v.SetDefault("display.theme", defaults.Display.Theme)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Non-positive durations fall back to the defaults.
	if cfg.Sync.GracePeriodSec <= 0 {
		cfg.Sync.GracePeriodSec = defaults.Sync.GracePeriodSec
	}
	if cfg.Sync.RetryIntervalSec <= 0 {
		cfg.Sync.RetryIntervalSec = defaults.Sync.RetryIntervalSec
	}
	if cfg.Router.ResolveTimeoutMs <= 0 {
		cfg.Router.ResolveTimeoutMs = defaults.Router.ResolveTimeoutMs
	}
	if cfg.Push.Mail.PollIntervalSec <= 0 {
		cfg.Push.Mail.PollIntervalSec = defaults.Push.Mail.PollIntervalSec
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("sync", cfg.Sync)
	v.Set("router", cfg.Router)
	v.Set("firebase", cfg.Firebase)
	v.Set("offline", cfg.Offline)
	v.Set("push", cfg.Push)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
