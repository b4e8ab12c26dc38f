package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Backend != BackendFTP {
		t.Errorf("Backend = %q, expected %q", cfg.Backend, BackendFTP)
	}
	if cfg.Port != 21 {
		t.Errorf("Port = %d, expected 21", cfg.Port)
	}
	if cfg.GameRootDirectory != "/E/Games" {
		t.Errorf("GameRootDirectory = %q, expected /E/Games", cfg.GameRootDirectory)
	}
	if cfg.ResumeStrategy != "binary" {
		t.Errorf("ResumeStrategy = %q, expected binary", cfg.ResumeStrategy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadMissingConfig(t *testing.T) {
	setHome(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed for missing config: %v", err)
	}
	if cfg.User != "xbox" {
		t.Errorf("Expected default user, got %q", cfg.User)
	}
}

func TestLoadValidConfig(t *testing.T) {
	home := setHome(t)

	configDir := filepath.Join(home, ".xboxftp")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	configContent := `
backend: s3
host: 10.0.0.5
port: 2121
connect_timeout: 5s
resume_strategy: sequential
probe_rate_limit: 20
games_to_upload:
  - /games/halo.zip
s3:
  bucket: games
  path_style: true
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Backend != BackendS3 {
		t.Errorf("Backend = %q, expected %q", cfg.Backend, BackendS3)
	}
	if cfg.Host != "10.0.0.5" || cfg.Port != 2121 {
		t.Errorf("Host:Port = %s:%d, expected 10.0.0.5:2121", cfg.Host, cfg.Port)
	}
	if cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %v, expected 5s", cfg.ConnectTimeout)
	}
	if cfg.S3.Bucket != "games" || !cfg.S3.PathStyle {
		t.Errorf("S3 = %+v, expected bucket games with path style", cfg.S3)
	}
	if cfg.ProbeRateLimit != 20 {
		t.Errorf("ProbeRateLimit = %d, expected 20", cfg.ProbeRateLimit)
	}
	// unset keys keep their defaults
	if cfg.User != "xbox" {
		t.Errorf("User = %q, expected default xbox", cfg.User)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	home := setHome(t)
	configDir := filepath.Join(home, ".xboxftp")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("port: [not a number"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestSaveAndReload(t *testing.T) {
	setHome(t)

	cfg := DefaultConfig()
	cfg.Host = "xbox.lan"
	cfg.ConnectRetryBudget = time.Minute
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(ConfigPath())
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config permissions = %o, expected 600", perm)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Host != "xbox.lan" {
		t.Errorf("Host = %q, expected xbox.lan", loaded.Host)
	}
	if loaded.ConnectRetryBudget != time.Minute {
		t.Errorf("ConnectRetryBudget = %v, expected 1m", loaded.ConnectRetryBudget)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"XBOXFTP_HOST":     "10.1.1.1",
		"XBOXFTP_PORT":     "2222",
		"XBOXFTP_USER":     "admin",
		"XBOXFTP_PASSWORD": "secret",
		"XBOXFTP_BACKEND":  "memory",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}

	if cfg.Host != "10.1.1.1" || cfg.Port != 2222 || cfg.User != "admin" || cfg.Password != "secret" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.Backend != BackendMemory {
		t.Errorf("Backend = %q, expected memory", cfg.Backend)
	}
}

func TestApplyEnvBadPort(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "XBOXFTP_PORT" {
			return "twenty-one", true
		}
		return "", false
	})
	if err == nil {
		t.Error("Expected error for non-numeric port")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing host", func(c *Config) { c.Host = "" }, "host is required"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "out of range"},
		{"s3 without bucket", func(c *Config) { c.Backend = BackendS3 }, "s3.bucket"},
		{"unknown backend", func(c *Config) { c.Backend = "smb" }, "unknown backend"},
		{"test mode skips host", func(c *Config) { c.Host = ""; c.TestMode = true }, ""},
		{"unknown strategy", func(c *Config) { c.ResumeStrategy = "random" }, "resume strategy"},
		{"negative rate", func(c *Config) { c.ProbeRateLimit = -1 }, "probe_rate_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, expected nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, expected error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEffectiveBackend(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.EffectiveBackend(); got != BackendFTP {
		t.Errorf("EffectiveBackend() = %q, expected ftp", got)
	}
	cfg.TestMode = true
	if got := cfg.EffectiveBackend(); got != BackendMemory {
		t.Errorf("EffectiveBackend() = %q, expected memory", got)
	}
}

func TestArchivePaths(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "games.txt")
	list := "# my games\n\"/games/fable.zip\"\n\n/games/halo.zip\n'/games/jsrf.zip'\n"
	if err := os.WriteFile(listPath, []byte(list), 0644); err != nil {
		t.Fatalf("Failed to write list: %v", err)
	}

	cfg := DefaultConfig()
	cfg.GamesToUpload = []string{"/games/halo.zip", "/games/oddworld.zip"}
	cfg.GameToUpload = "/games/fable.zip"
	cfg.GamesToUploadFile = listPath

	got, err := cfg.ArchivePaths()
	if err != nil {
		t.Fatalf("ArchivePaths failed: %v", err)
	}
	expected := []string{"/games/halo.zip", "/games/oddworld.zip", "/games/fable.zip", "/games/jsrf.zip"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("ArchivePaths() = %v, expected %v", got, expected)
	}
}

func TestArchivePathsMissingList(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GamesToUploadFile = filepath.Join(t.TempDir(), "missing.txt")

	if _, err := cfg.ArchivePaths(); err == nil {
		t.Error("Expected error for missing list file")
	}
}

func TestExpandPath(t *testing.T) {
	home := setHome(t)

	tests := []struct {
		input    string
		expected string
	}{
		{"~/games", filepath.Join(home, "games")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ExpandPath(tt.input); got != tt.expected {
				t.Errorf("ExpandPath(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}
