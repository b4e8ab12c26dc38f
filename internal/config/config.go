// Package config loads xboxftp settings from ~/.xboxftp/config.yaml with
// environment overrides layered on top.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backends understood by the upload command.
const (
	BackendFTP    = "ftp"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// S3Config selects the bucket used by the s3 backend.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
}

type Config struct {
	Backend string `yaml:"backend"`
	// TestMode uploads to an in-memory repository regardless of Backend.
	TestMode bool `yaml:"test_mode"`

	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	User              string `yaml:"user"`
	Password          string `yaml:"password"`
	GameRootDirectory string `yaml:"game_root_directory"`

	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	ConnectRetryBudget time.Duration `yaml:"connect_retry_budget"`

	S3 S3Config `yaml:"s3"`

	ResumeStrategy string `yaml:"resume_strategy"`
	// ProbeRateLimit caps existence checks per second. Zero disables the limit.
	ProbeRateLimit int `yaml:"probe_rate_limit"`

	GamesToUpload     []string `yaml:"games_to_upload"`
	GameToUpload      string   `yaml:"game_to_upload"`
	GamesToUploadFile string   `yaml:"games_to_upload_file"`

	TempDir  string `yaml:"temp_dir"`
	LogDir   string `yaml:"log_dir"`
	LogLevel string `yaml:"log_level"`

	MemoryUploadDelay time.Duration `yaml:"memory_upload_delay"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:            BackendFTP,
		Host:               "192.168.1.100",
		Port:               21,
		User:               "xbox",
		Password:           "xbox",
		GameRootDirectory:  "/E/Games",
		ConnectTimeout:     10 * time.Second,
		ConnectRetryBudget: 30 * time.Second,
		S3:                 S3Config{Region: "us-east-1"},
		ResumeStrategy:     "binary",
		TempDir:            filepath.Join(os.TempDir(), "xboxftp"),
		LogDir:             filepath.Join(Dir(), "logs"),
		LogLevel:           "info",
		MemoryUploadDelay:  100 * time.Millisecond,
	}
}

// Dir is the directory holding the config file, history and logs.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".xboxftp")
}

func ConfigPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads the config file, falling back to defaults when it is missing,
// then applies environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", ConfigPath(), err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("XBOXFTP_HOST"); ok {
		c.Host = v
	}
	if v, ok := lookup("XBOXFTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("XBOXFTP_PORT: %w", err)
		}
		c.Port = port
	}
	if v, ok := lookup("XBOXFTP_USER"); ok {
		c.User = v
	}
	if v, ok := lookup("XBOXFTP_PASSWORD"); ok {
		c.Password = v
	}
	if v, ok := lookup("XBOXFTP_BACKEND"); ok {
		c.Backend = v
	}
	return nil
}

func (c *Config) Save() error {
	path := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// 0600: the file holds credentials
	return os.WriteFile(path, data, 0600)
}

// EffectiveBackend is the backend actually used, taking TestMode into account.
func (c *Config) EffectiveBackend() string {
	if c.TestMode {
		return BackendMemory
	}
	return c.Backend
}

// Validate reports every problem with the settings at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.EffectiveBackend() {
	case BackendFTP:
		if c.Host == "" {
			errs = append(errs, errors.New("host is required for the ftp backend"))
		}
		if c.Port < 1 || c.Port > 65535 {
			errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("s3.bucket is required for the s3 backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}

	switch c.ResumeStrategy {
	case "", "binary", "sequential":
	default:
		errs = append(errs, fmt.Errorf("unknown resume strategy %q", c.ResumeStrategy))
	}
	if c.ProbeRateLimit < 0 {
		errs = append(errs, errors.New("probe_rate_limit must not be negative"))
	}
	if c.ConnectTimeout < 0 || c.ConnectRetryBudget < 0 || c.MemoryUploadDelay < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	return errors.Join(errs...)
}

// ArchivePaths merges games_to_upload, game_to_upload and the entries of
// games_to_upload_file, in that order, dropping duplicates.
func (c *Config) ArchivePaths() ([]string, error) {
	paths := append([]string(nil), c.GamesToUpload...)
	if c.GameToUpload != "" {
		paths = append(paths, c.GameToUpload)
	}
	if c.GamesToUploadFile != "" {
		listed, err := ReadArchiveList(ExpandPath(c.GamesToUploadFile))
		if err != nil {
			return nil, err
		}
		paths = append(paths, listed...)
	}
	return dedupe(paths), nil
}

// ReadArchiveList reads one archive path per line. Surrounding quotes are
// stripped; blank lines and lines starting with # are skipped.
func ReadArchiveList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive list: %w", err)
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.Trim(line, `"'`)
		if line != "" {
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading archive list: %w", err)
	}
	return paths, nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = ExpandPath(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// ExpandPath expands ~ to home directory
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path // Return unexpanded if home unavailable
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
