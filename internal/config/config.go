// Package config loads ytdlp-picker settings from a YAML file and the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lvcoi/ytdlp-picker/internal/formats"
)

const (
	appName  = "ytdlp-picker"
	fileName = "config.yml"
)

// Playlist listing backends.
const (
	BackendYtdlp  = "ytdlp"
	BackendNative = "native"
)

// Config holds every setting. Zero durations are invalid; Default fills them.
type Config struct {
	YtdlpPath        string        `yaml:"ytdlp_path"`
	OutputDir        string        `yaml:"output_dir"`
	Policy           string        `yaml:"policy"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	LogLevel         string        `yaml:"log_level"`
	PlaylistBackend  string        `yaml:"playlist_backend"`
	TUI              bool          `yaml:"tui"`
	CheckUpdates     bool          `yaml:"check_updates"`
	GitHubToken      string        `yaml:"github_token,omitempty"`
	VerifyMerge      bool          `yaml:"verify_merge"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		YtdlpPath:        "yt-dlp",
		OutputDir:        "downloads",
		Policy:           string(formats.PolicyGeneral),
		FetchTimeout:     30 * time.Second,
		ProgressInterval: 200 * time.Millisecond,
		LogLevel:         "info",
		PlaylistBackend:  BackendYtdlp,
		CheckUpdates:     true,
		VerifyMerge:      true,
	}
}

// Path returns the default config file location,
// $XDG_CONFIG_HOME/ytdlp-picker/config.yml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		if dir, err = os.UserConfigDir(); err != nil {
			return filepath.Join(".", appName, fileName)
		}
	}
	return filepath.Join(dir, appName, fileName)
}

// Load reads path (Path() when empty) over the defaults and applies the
// environment. A missing file is not an error. Only decoding is checked here;
// callers layer their own overrides and then call Validate.
func Load(path string) (Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := cfg.decode(data); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides settings from YTDLP_PATH and GITHUB_TOKEN.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv("YTDLP_PATH")); v != "" {
		c.YtdlpPath = v
	}
	if v := strings.TrimSpace(getenv("GITHUB_TOKEN")); v != "" {
		c.GitHubToken = v
	}
}

// Validate rejects settings the rest of the program cannot use. Policy and
// log level are normalized in place.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.YtdlpPath) == "" {
		errs = append(errs, errors.New("ytdlp_path must not be empty"))
	}
	if policy, err := formats.ParsePolicy(c.Policy); err != nil {
		errs = append(errs, err)
	} else {
		c.Policy = string(policy)
	}
	switch level := strings.ToLower(strings.TrimSpace(c.LogLevel)); level {
	case "debug", "info", "warn", "warning", "error":
		c.LogLevel = level
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	switch c.PlaylistBackend {
	case BackendYtdlp, BackendNative:
	default:
		errs = append(errs, fmt.Errorf("unknown playlist_backend %q (expected %s or %s)", c.PlaylistBackend, BackendYtdlp, BackendNative))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("fetch_timeout must be positive"))
	}
	if c.ProgressInterval <= 0 {
		errs = append(errs, errors.New("progress_interval must be positive"))
	}
	return errors.Join(errs...)
}

// YAML renders the config for display with the token masked.
func (c Config) YAML() ([]byte, error) {
	if c.GitHubToken != "" {
		c.GitHubToken = maskToken(c.GitHubToken)
	}
	return yaml.Marshal(c)
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
