// internal/config/config.go
//
// This package handles configuration and the .socialhub directory structure.
// Every directory socialhub is launched from gets a .socialhub/ folder holding
// the config file and the journal.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// AppDir is the name of the directory we create in the working directory
	AppDir = ".socialhub"

	DefaultBaseURL     = "http://127.0.0.1:8000"
	DefaultProfilePath = "/profile/"
	DefaultTimeout     = 10 * time.Second
	DefaultRetries     = 2

	// Notification timings mirror the web client's toast transitions.
	DefaultToastEnter   = 100 * time.Millisecond
	DefaultToastDisplay = 3000 * time.Millisecond
	DefaultToastExit    = 300 * time.Millisecond

	DefaultCounterDuration = 500 * time.Millisecond
	DefaultCounterTick     = 16 * time.Millisecond

	// DefaultPostExit is how long a deleted post stays on screen sliding out.
	DefaultPostExit = 300 * time.Millisecond
)

const defaultConfigYAML = `# socialhub configuration
version: 1

api:
  base_url: http://127.0.0.1:8000
  # Page that accepts bio updates as a form post.
  profile_path: /profile/
  timeout: 10s
  # Retries apply to reads only; mutations are never re-submitted.
  retries: 2

# The session and anti-forgery token are issued by the web login flow.
# Leave them empty here and export SOCIALHUB_SESSION / SOCIALHUB_CSRF_TOKEN instead.
auth:
  session: ""
  csrf_token: ""

ui:
  toast_enter: 100ms
  toast_display: 3s
  toast_exit: 300ms
  counter_duration: 500ms
  counter_tick: 16ms

log:
  level: info
`

// APIConfig locates the feed API.
type APIConfig struct {
	BaseURL     string        `yaml:"base_url"`
	ProfilePath string        `yaml:"profile_path,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Retries     int           `yaml:"retries"`
}

// AuthConfig carries the opaque credentials established by the web login.
type AuthConfig struct {
	Session   string `yaml:"session,omitempty"`
	CSRFToken string `yaml:"csrf_token,omitempty"`
}

// UIConfig tunes transition timings.
type UIConfig struct {
	ToastEnter      time.Duration `yaml:"toast_enter,omitempty"`
	ToastDisplay    time.Duration `yaml:"toast_display,omitempty"`
	ToastExit       time.Duration `yaml:"toast_exit,omitempty"`
	CounterDuration time.Duration `yaml:"counter_duration,omitempty"`
	CounterTick     time.Duration `yaml:"counter_tick,omitempty"`
	PostExit        time.Duration `yaml:"post_exit,omitempty"`
}

// LogConfig selects the journal verbosity.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
}

// FileConfig models .socialhub/config.yaml.
type FileConfig struct {
	Version int        `yaml:"version"`
	API     APIConfig  `yaml:"api"`
	Auth    AuthConfig `yaml:"auth"`
	UI      UIConfig   `yaml:"ui"`
	Log     LogConfig  `yaml:"log"`
}

// Config holds the runtime configuration for socialhub.
type Config struct {
	// ProjectDir is the directory where the user ran `socialhub` from
	ProjectDir string

	// AppProjectDir is ProjectDir/.socialhub
	AppProjectDir string

	// EnvFiles lists the dotenv files that were applied, in order.
	EnvFiles []string

	File FileConfig
}

// InitAppDir creates the .socialhub directory structure in the given directory.
//
// Structure created:
// .socialhub/
// ├── config.yaml
// └── logs/
func InitAppDir(projectDir string) error {
	appDir := filepath.Join(projectDir, AppDir)
	if err := os.MkdirAll(filepath.Join(appDir, "logs"), 0o755); err != nil {
		return err
	}
	return ensureConfigFile(filepath.Join(appDir, "config.yaml"))
}

// NewConfig loads dotenv files, the config file and environment overrides, in
// that order of increasing precedence.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:    projectDir,
		AppProjectDir: filepath.Join(projectDir, AppDir),
		File:          defaultFileConfig(),
	}
	cfg.EnvFiles = LoadEnv(projectDir)
	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	cfg.File.applyEnvOverrides()
	cfg.File.applyDefaults()
	cfg.File.normalize()
	if err := cfg.File.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadEnv applies .env and .env.dev from dir when present and returns the
// files that were loaded. Later files win.
func LoadEnv(dir string) []string {
	files := []string{".env", ".env.dev"}
	loaded := make([]string, 0, len(files))
	for _, name := range files {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			continue
		}
		loaded = append(loaded, name)
	}
	return loaded
}

// ConfigPath returns the on-disk location for the config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.AppProjectDir, "config.yaml")
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.AppProjectDir, "logs")
}

// LogPath returns the journal file.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "socialhub.log")
}

// LogLevel maps the configured level onto logrus.
func (c *Config) LogLevel() logrus.Level {
	switch c.File.Log.Level {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// SetBaseURL overrides the API location, typically from a CLI flag.
func (c *Config) SetBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if err := validateBaseURL(raw); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.File.API.BaseURL = strings.TrimRight(raw, "/")
	return nil
}

func (c *Config) loadFile() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	parsed := defaultFileConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.File = parsed
	return nil
}

func defaultFileConfig() FileConfig {
	return FileConfig{
		Version: 1,
		API: APIConfig{
			BaseURL:     DefaultBaseURL,
			ProfilePath: DefaultProfilePath,
			Timeout:     DefaultTimeout,
			Retries:     DefaultRetries,
		},
		UI: UIConfig{
			ToastEnter:      DefaultToastEnter,
			ToastDisplay:    DefaultToastDisplay,
			ToastExit:       DefaultToastExit,
			CounterDuration: DefaultCounterDuration,
			CounterTick:     DefaultCounterTick,
			PostExit:        DefaultPostExit,
		},
		Log: LogConfig{Level: "info"},
	}
}

func (fc *FileConfig) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("SOCIALHUB_BASE_URL")); v != "" {
		fc.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SOCIALHUB_PROFILE_PATH")); v != "" {
		fc.API.ProfilePath = v
	}
	if v := strings.TrimSpace(os.Getenv("SOCIALHUB_RETRIES")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			fc.API.Retries = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("SOCIALHUB_SESSION")); v != "" {
		fc.Auth.Session = v
	}
	if v := strings.TrimSpace(os.Getenv("SOCIALHUB_CSRF_TOKEN")); v != "" {
		fc.Auth.CSRFToken = v
	}
	if v := strings.TrimSpace(os.Getenv("SOCIALHUB_LOG_LEVEL")); v != "" {
		fc.Log.Level = v
	}
}

func (fc *FileConfig) applyDefaults() {
	if fc.Version == 0 {
		fc.Version = 1
	}
	if fc.API.Timeout <= 0 {
		fc.API.Timeout = DefaultTimeout
	}
	if fc.API.Retries < 0 {
		fc.API.Retries = 0
	}
	ui := &fc.UI
	if ui.ToastEnter <= 0 {
		ui.ToastEnter = DefaultToastEnter
	}
	if ui.ToastDisplay <= 0 {
		ui.ToastDisplay = DefaultToastDisplay
	}
	if ui.ToastExit <= 0 {
		ui.ToastExit = DefaultToastExit
	}
	if ui.CounterDuration <= 0 {
		ui.CounterDuration = DefaultCounterDuration
	}
	if ui.CounterTick <= 0 {
		ui.CounterTick = DefaultCounterTick
	}
	if ui.PostExit <= 0 {
		ui.PostExit = DefaultPostExit
	}
}

func (fc *FileConfig) normalize() {
	fc.API.BaseURL = strings.TrimRight(strings.TrimSpace(fc.API.BaseURL), "/")
	if fc.API.BaseURL == "" {
		fc.API.BaseURL = DefaultBaseURL
	}
	path := strings.TrimSpace(fc.API.ProfilePath)
	if path == "" {
		path = DefaultProfilePath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	fc.API.ProfilePath = path
	fc.Auth.Session = strings.TrimSpace(fc.Auth.Session)
	fc.Auth.CSRFToken = strings.TrimSpace(fc.Auth.CSRFToken)
	fc.Log.Level = strings.ToLower(strings.TrimSpace(fc.Log.Level))
}

func (fc *FileConfig) validate() error {
	if fc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if err := validateBaseURL(fc.API.BaseURL); err != nil {
		return err
	}
	switch fc.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	if fc.UI.CounterTick > fc.UI.CounterDuration {
		return fmt.Errorf("ui.counter_tick must not exceed ui.counter_duration")
	}
	return nil
}

func validateBaseURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("api.base_url must include a host")
	}
	return nil
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
