package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the Jira app credentials and local paths.
type Config struct {
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	DataDir       string
	LogDir        string
	SyncInterval  time.Duration
	LookbackWeeks int
}

const (
	defaultConfigPath    = "~/.config/jiratrack/config.toml"
	defaultDataDir       = "~/.local/share/jiratrack"
	defaultLogDir        = "~/.local/share/jiratrack/logs"
	defaultRedirectURI   = "http://127.0.0.1:51121/callback"
	defaultSyncInterval  = 5 * time.Minute
	defaultLookbackWeeks = 4
	minSyncInterval      = 30 * time.Second

	envClientID     = "JIRA_CLIENT_ID"
	envClientSecret = "JIRA_CLIENT_SECRET"
)

// Load locates and parses the jiratrack config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := defaults()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		ClientID      string `toml:"client_id"`
		ClientSecret  string `toml:"client_secret"`
		RedirectURI   string `toml:"redirect_uri"`
		DataDir       string `toml:"data_dir"`
		LogDir        string `toml:"log_dir"`
		SyncInterval  string `toml:"sync_interval"`
		LookbackWeeks int    `toml:"lookback_weeks"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.ClientID = strings.TrimSpace(raw.ClientID)
	cfg.ClientSecret = strings.TrimSpace(raw.ClientSecret)
	if v := strings.TrimSpace(raw.RedirectURI); v != "" {
		cfg.RedirectURI = v
	}
	if v := strings.TrimSpace(raw.DataDir); v != "" {
		cfg.DataDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.LogDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.SyncInterval); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: sync_interval: %w", err)
		}
		if interval < minSyncInterval {
			interval = minSyncInterval
		}
		cfg.SyncInterval = interval
	}
	if raw.LookbackWeeks > 0 {
		cfg.LookbackWeeks = raw.LookbackWeeks
	}

	applyEnv(&cfg)
	return cfg, nil
}

// HasCredentials reports whether an OAuth app is configured.
func (c Config) HasCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// StorePath returns the path to the local SQLite store.
func (c Config) StorePath() string {
	if strings.TrimSpace(c.DataDir) == "" {
		return mustExpand(defaultDataDir + "/store.db")
	}
	return filepath.Join(c.DataDir, "store.db")
}

// LogPath returns the path to the jiratrack log file.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir + "/jiratrack.log")
	}
	return filepath.Join(c.LogDir, "jiratrack.log")
}

func defaults() Config {
	return Config{
		RedirectURI:   defaultRedirectURI,
		DataDir:       mustExpand(defaultDataDir),
		LogDir:        mustExpand(defaultLogDir),
		SyncInterval:  defaultSyncInterval,
		LookbackWeeks: defaultLookbackWeeks,
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(envClientID)); v != "" {
		cfg.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv(envClientSecret)); v != "" {
		cfg.ClientSecret = v
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
