package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/3cpo-dev/channel-janitor/internal/twilio"
)

// AppName names the config and data directories.
const AppName = "channel-janitor"

// Config is the janitor configuration.
type Config struct {
	Twilio struct {
		AccountSID        string  `yaml:"account_sid"`
		AuthToken         string  `yaml:"auth_token"`
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
		Retries           int     `yaml:"retries"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Endpoints         struct {
			Chat       string `yaml:"chat"`
			TaskRouter string `yaml:"taskrouter"`
			Proxy      string `yaml:"proxy"`
		} `yaml:"endpoints"`
	} `yaml:"twilio"`
	Services ServiceNames `yaml:"services"`
	Cleanup  struct {
		BatchSize int  `yaml:"batch_size"`
		Serial    bool `yaml:"serial"`
		DryRun    bool `yaml:"dry_run"`
	} `yaml:"cleanup"`
	History struct {
		Disabled bool   `yaml:"disabled"`
		Path     string `yaml:"path"`
	} `yaml:"history"`
	Telemetry struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"telemetry"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	var cfg Config
	cfg.Twilio.TimeoutSeconds = 30
	cfg.Twilio.Retries = 3
	cfg.Twilio.RequestsPerSecond = 25
	cfg.Services = DefaultServiceNames()
	cfg.Cleanup.BatchSize = DefaultBatchSize
	return cfg
}

func configDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName)
}

// DefaultHistoryPath resolves $XDG_DATA_HOME/channel-janitor/history.db or
// ~/.local/share/channel-janitor/history.db.
func DefaultHistoryPath() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, AppName, "history.db")
}

// LoadConfig reads YAML configuration from a path. If path is empty, it resolves
// $XDG_CONFIG_HOME/channel-janitor/config.yaml or ~/.config/channel-janitor/config.yaml
// and tolerates the file being absent. Values from secrets.env and the
// environment are applied on top.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		path = filepath.Join(configDir(), "config.yaml")
	}
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("open config: %w", err)
	}

	// Tokens may live in secrets.env to keep them out of the YAML file.
	secrets, _ := LoadSecretsEnv("")
	for _, key := range []string{"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "CHAT_SERVICE", "TASKROUTER_WORKSPACE", "PROXY_SERVICE", "BATCH_SIZE"} {
		if v := os.Getenv(key); v != "" {
			secrets[key] = v
		}
	}
	if err := cfg.applyEnv(secrets); err != nil {
		return cfg, err
	}
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath()
	}
	return cfg, nil
}

func (c *Config) applyEnv(env map[string]string) error {
	if v := env["TWILIO_ACCOUNT_SID"]; v != "" {
		c.Twilio.AccountSID = v
	}
	if v := env["TWILIO_AUTH_TOKEN"]; v != "" {
		c.Twilio.AuthToken = v
	}
	if v := env["CHAT_SERVICE"]; v != "" {
		c.Services.ChatService = v
	}
	if v := env["TASKROUTER_WORKSPACE"]; v != "" {
		c.Services.Workspace = v
	}
	if v := env["PROXY_SERVICE"]; v != "" {
		c.Services.ProxyService = v
	}
	if v := env["BATCH_SIZE"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BATCH_SIZE: %w", err)
		}
		c.Cleanup.BatchSize = n
	}
	return nil
}

// Validate checks the settings a run cannot do without.
func (c Config) Validate() error {
	if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
		return errors.New("account sid and auth token are required (--account-sid/--auth-token or TWILIO_ACCOUNT_SID/TWILIO_AUTH_TOKEN)")
	}
	if c.Cleanup.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.Cleanup.BatchSize)
	}
	if c.Services.ChatService == "" || c.Services.Workspace == "" || c.Services.ProxyService == "" {
		return errors.New("chat service, workspace and proxy service names must not be empty")
	}
	return nil
}

// Runner returns the batch discipline the config selects.
func (c Config) Runner() Runner {
	return Runner{Serial: c.Cleanup.Serial, BatchSize: c.Cleanup.BatchSize}
}

// ClientOptions maps the config onto Twilio client options.
func (c Config) ClientOptions() twilio.Options {
	retry := twilio.DefaultRetryConfig()
	if c.Twilio.Retries >= 0 {
		retry.MaxRetries = c.Twilio.Retries
	}
	return twilio.Options{
		AccountSID: c.Twilio.AccountSID,
		AuthToken:  c.Twilio.AuthToken,
		Endpoints: twilio.Endpoints{
			Chat:       c.Twilio.Endpoints.Chat,
			TaskRouter: c.Twilio.Endpoints.TaskRouter,
			Proxy:      c.Twilio.Endpoints.Proxy,
		},
		Timeout:           secondsOr(c.Twilio.TimeoutSeconds, 30),
		RequestsPerSecond: c.Twilio.RequestsPerSecond,
		Retry:             retry,
	}
}

func secondsOr(n, def int) time.Duration {
	if n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Second
}
