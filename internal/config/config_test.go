package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(envClientID, "")
	t.Setenv(envClientSecret, "")
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.RedirectURI != defaultRedirectURI {
		t.Fatalf("RedirectURI = %q, want %q", cfg.RedirectURI, defaultRedirectURI)
	}
	if cfg.SyncInterval != defaultSyncInterval {
		t.Fatalf("SyncInterval = %v, want %v", cfg.SyncInterval, defaultSyncInterval)
	}
	if cfg.LookbackWeeks != defaultLookbackWeeks {
		t.Fatalf("LookbackWeeks = %d, want %d", cfg.LookbackWeeks, defaultLookbackWeeks)
	}

	wantDataDir, err := expandPath(defaultDataDir)
	if err != nil {
		t.Fatalf("expandPath(defaultDataDir) returned error: %v", err)
	}
	if cfg.DataDir != wantDataDir {
		t.Fatalf("DataDir = %q, want %q", cfg.DataDir, wantDataDir)
	}
	if cfg.StorePath() != filepath.Join(wantDataDir, "store.db") {
		t.Fatalf("StorePath = %q, want %q", cfg.StorePath(), filepath.Join(wantDataDir, "store.db"))
	}
	if cfg.HasCredentials() {
		t.Fatalf("HasCredentials = true without client id/secret")
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
client_id = "  abc  "
client_secret = " s3cret "
redirect_uri = "http://localhost:9999/cb"
data_dir = "  ~/.jt  "
log_dir = "~/.jt/logs"
sync_interval = "2m"
lookback_weeks = 6
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ClientID != "abc" || cfg.ClientSecret != "s3cret" {
		t.Fatalf("credentials = %q/%q, want trimmed values", cfg.ClientID, cfg.ClientSecret)
	}
	if !cfg.HasCredentials() {
		t.Fatalf("HasCredentials = false, want true")
	}
	if cfg.RedirectURI != "http://localhost:9999/cb" {
		t.Fatalf("RedirectURI = %q", cfg.RedirectURI)
	}
	if !strings.HasPrefix(cfg.DataDir, home) {
		t.Fatalf("DataDir = %q, want it under HOME %q", cfg.DataDir, home)
	}
	if cfg.LogPath() != filepath.Join(home, ".jt", "logs", "jiratrack.log") {
		t.Fatalf("LogPath = %q", cfg.LogPath())
	}
	if cfg.SyncInterval != 2*time.Minute {
		t.Fatalf("SyncInterval = %v, want 2m", cfg.SyncInterval)
	}
	if cfg.LookbackWeeks != 6 {
		t.Fatalf("LookbackWeeks = %d, want 6", cfg.LookbackWeeks)
	}
}

func TestLoad_ClampsShortSyncInterval(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`sync_interval = "1s"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.SyncInterval != minSyncInterval {
		t.Fatalf("SyncInterval = %v, want %v", cfg.SyncInterval, minSyncInterval)
	}
}

func TestLoad_EnvOverridesCredentials(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(envClientID, "env-id")
	t.Setenv(envClientSecret, "env-secret")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`client_id = "file-id"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ClientID != "env-id" || cfg.ClientSecret != "env-secret" {
		t.Fatalf("credentials = %q/%q, want env values", cfg.ClientID, cfg.ClientSecret)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`client_id = [`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoad_InvalidIntervalFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`sync_interval = "soon"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "sync_interval") {
		t.Fatalf("Load error = %v, want sync_interval error", err)
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}

func TestLogPath_DefaultsWhenLogDirEmpty(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var cfg Config
	got := cfg.LogPath()
	if !strings.HasPrefix(got, home) {
		t.Fatalf("LogPath = %q, want it under HOME %q", got, home)
	}
	if !strings.HasSuffix(got, filepath.FromSlash("/jiratrack.log")) {
		t.Fatalf("LogPath = %q, want it to end with /jiratrack.log", got)
	}
}
