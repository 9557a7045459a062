package model

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. NOTIFMON_BASE_URL.
const envPrefix = "NOTIFMON"

// LogConfig controls where and how verbosely the application logs.
type LogConfig struct {
	// Level is a zerolog level name ("debug", "info", "warn", ...).
	Level string `mapstructure:"level" yaml:"level"`

	// File is the JSON log destination. The TUI owns stdout, so logs
	// never go to the terminal while it runs.
	File string `mapstructure:"file" yaml:"file"`
}

// HistoryConfig controls the local sync history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`

	// Keep is the number of refresh rows retained after pruning.
	Keep int `mapstructure:"keep" yaml:"keep"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// BaseURL is the root of the notification service. Both the bulk
	// fetch endpoint and the push channel live under it.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// ListPath is the bulk fetch endpoint path.
	ListPath string `mapstructure:"list_path" yaml:"list_path"`

	// PushPath is the websocket push channel path.
	PushPath string `mapstructure:"push_path" yaml:"push_path"`

	// FetchTimeoutSec bounds a single bulk fetch.
	FetchTimeoutSec int `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`

	// DebounceMs coalesces bursts of push events into one trailing fetch.
	// Zero disables coalescing: every qualifying event fetches.
	DebounceMs int `mapstructure:"debounce_ms" yaml:"debounce_ms"`

	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
}

// DefaultConfigDir returns ~/.config/notifmon.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "notifmon")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/notifmon/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration pointing at
// a notification service on localhost.
func DefaultAppConfig() *AppConfig {
	dir := DefaultConfigDir()
	return &AppConfig{
		BaseURL:         "http://localhost:4000",
		ListPath:        "/api/email/list",
		PushPath:        "/ws",
		FetchTimeoutSec: 30,
		DebounceMs:      0,
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "notifmon.log"),
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(dir, "history.db"),
			Keep:    500,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults are used. Environment variables
// prefixed with NOTIFMON_ override both.
func LoadConfig(path string) (*AppConfig, error) {
	def := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values. Every key
	// needs a default for AutomaticEnv to see it during Unmarshal.
	v.SetDefault("base_url", def.BaseURL)
	v.SetDefault("list_path", def.ListPath)
	v.SetDefault("push_path", def.PushPath)
	v.SetDefault("fetch_timeout_sec", def.FetchTimeoutSec)
	v.SetDefault("debounce_ms", def.DebounceMs)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("history.enabled", def.History.Enabled)
	v.SetDefault("history.path", def.History.Path)
	v.SetDefault("history.keep", def.History.Keep)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.FetchTimeoutSec <= 0 {
		cfg.FetchTimeoutSec = def.FetchTimeoutSec
	}
	if cfg.DebounceMs < 0 {
		cfg.DebounceMs = 0
	}
	cfg.Log.File = expandHome(cfg.Log.File)
	cfg.History.Path = expandHome(cfg.History.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
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

	v.Set("base_url", cfg.BaseURL)
	v.Set("list_path", cfg.ListPath)
	v.Set("push_path", cfg.PushPath)
	v.Set("fetch_timeout_sec", cfg.FetchTimeoutSec)
	v.Set("debounce_ms", cfg.DebounceMs)
	v.Set("log", cfg.Log)
	v.Set("history", cfg.History)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Validate checks that the base URL is an absolute http(s) URL.
func (c *AppConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing base_url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url %q must use http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url %q has no host", c.BaseURL)
	}
	return nil
}

// ListURL is the absolute bulk fetch URL.
func (c *AppConfig) ListURL() string {
	return strings.TrimRight(c.BaseURL, "/") + ensureSlash(c.ListPath)
}

// PushURL is the absolute push channel URL. It shares the base URL's
// host with the fetch endpoint, switching http to ws and https to wss.
func (c *AppConfig) PushURL() string {
	base := strings.TrimRight(c.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + ensureSlash(c.PushPath)
}

// FetchTimeout is FetchTimeoutSec as a duration.
func (c *AppConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// Debounce is DebounceMs as a duration.
func (c *AppConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

func ensureSlash(p string) string {
	if p == "" || strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
