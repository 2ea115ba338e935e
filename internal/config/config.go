// internal/config/config.go
//
// This package handles configuration and the .wardboard directory structure.
// Every workstation that runs the dashboard gets a .wardboard/ folder in its
// working directory holding config, logs and the session file.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// WardDir is the name of the directory we create in the working directory
	WardDir = ".wardboard"

	defaultBaseURL    = "http://localhost:5000"
	defaultDisplayCap = 10
	defaultRedisKey   = "wardboard:session:token"
	defaultLogLevel   = "info"
)

// Session backends.
const (
	SessionBackendFile  = "file"
	SessionBackendRedis = "redis"
)

const defaultProjectConfigYAML = `# wardboard configuration
version: 1

api:
  # Base URL of the bed service; /api/beds is appended.
  base_url: http://localhost:5000
  # Per-request timeout. 0 disables the timeout.
  timeout: 0s
  # Retries for bed list reads only. Mutations are never retried.
  retries: 0

session:
  # file keeps the token in .wardboard/state/session.yaml; redis shares it
  # between terminals on the same ward.
  backend: file
  # redis:
  #   addr: 127.0.0.1:6379
  #   db: 0
  #   key: wardboard:session:token
  #   ttl: 12h

dashboard:
  display_cap: 10

logging:
  level: info
`

// APIConfig points the dashboard at the bed service.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Retries int           `yaml:"retries,omitempty"`
}

// RedisConfig configures the shared session backend.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	Key      string        `yaml:"key,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
}

// SessionConfig selects where the bearer token lives.
type SessionConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis,omitempty"`
}

// DashboardConfig captures presentation preferences.
type DashboardConfig struct {
	DisplayCap int `yaml:"display_cap"`
}

// LoggingConfig controls the journey log.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ProjectConfig models .wardboard/config.yaml.
type ProjectConfig struct {
	Version   int             `yaml:"version"`
	API       APIConfig       `yaml:"api"`
	Session   SessionConfig   `yaml:"session"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Config holds the runtime configuration for the dashboard.
type Config struct {
	// ProjectDir is the directory the dashboard was started from
	ProjectDir string

	// WardProjectDir is ProjectDir/.wardboard
	WardProjectDir string

	Project ProjectConfig
}

// InitWardDir creates the .wardboard directory structure in the given
// directory. This is called before the TUI starts.
//
// Structure created:
// .wardboard/
// ├── config.yaml
// ├── logs/    <- journey.log
// └── state/   <- session.yaml when the file backend is used
func InitWardDir(projectDir string) error {
	wardDir := filepath.Join(projectDir, WardDir)

	dirs := []string{
		filepath.Join(wardDir, "logs"),
		filepath.Join(wardDir, "state"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return ensureProjectConfig(filepath.Join(wardDir, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings.
// A .env file in projectDir is loaded first so WARDBOARD_* variables can be
// kept next to the config.
func NewConfig(projectDir string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(projectDir, ".env"))

	cfg := &Config{
		ProjectDir:     projectDir,
		WardProjectDir: filepath.Join(projectDir, WardDir),
		Project:        defaultProjectConfig(),
	}

	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.Project.applyEnvOverrides()
	cfg.Project.normalize()
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.WardProjectDir, "logs")
}

// StateDir returns the path to the state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.WardProjectDir, "state")
}

// JourneyLogPath returns the log file shown in the dashboard's log panel.
func (c *Config) JourneyLogPath() string {
	return filepath.Join(c.LogsDir(), "journey.log")
}

// SessionPath returns the token file used by the file session backend.
func (c *Config) SessionPath() string {
	return filepath.Join(c.StateDir(), "session.yaml")
}

// ProjectConfigPath returns the on-disk location for the config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.WardProjectDir, "config.yaml")
}

// DisplayCap returns how many beds the dashboard renders.
func (c *Config) DisplayCap() int {
	return c.Project.Dashboard.DisplayCap
}

// SetBaseURL updates the bed service URL and persists it back to
// .wardboard/config.yaml. Only api.base_url changes on disk; environment
// overrides stay out of the file.
func (c *Config) SetBaseURL(raw string) error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	next := c.Project
	next.API.BaseURL = raw
	next.normalize()
	if next.API.BaseURL == "" {
		return fmt.Errorf("config: base url is required")
	}
	if err := next.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.writeBaseURL(next.API.BaseURL); err != nil {
		return err
	}
	c.Project.API.BaseURL = next.API.BaseURL
	return nil
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.applyEnvOverrides()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:   1,
		API:       APIConfig{BaseURL: defaultBaseURL},
		Session:   SessionConfig{Backend: SessionBackendFile},
		Dashboard: DashboardConfig{DisplayCap: defaultDisplayCap},
		Logging:   LoggingConfig{Level: defaultLogLevel},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.API.BaseURL) == "" {
		pc.API.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(pc.Session.Backend) == "" {
		pc.Session.Backend = SessionBackendFile
	}
	if pc.Dashboard.DisplayCap == 0 {
		pc.Dashboard.DisplayCap = defaultDisplayCap
	}
	if strings.TrimSpace(pc.Logging.Level) == "" {
		pc.Logging.Level = defaultLogLevel
	}
}

func (pc *ProjectConfig) applyEnvOverrides() {
	if value := strings.TrimSpace(os.Getenv("WARDBOARD_API_URL")); value != "" {
		pc.API.BaseURL = value
	}
	if value := strings.TrimSpace(os.Getenv("WARDBOARD_SESSION_BACKEND")); value != "" {
		pc.Session.Backend = value
	}
	if value := strings.TrimSpace(os.Getenv("WARDBOARD_REDIS_ADDR")); value != "" {
		pc.Session.Redis.Addr = value
	}
	if value := strings.TrimSpace(os.Getenv("WARDBOARD_DISPLAY_CAP")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			pc.Dashboard.DisplayCap = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("WARDBOARD_LOG_LEVEL")); value != "" {
		pc.Logging.Level = value
	}
}

func (pc *ProjectConfig) normalize() {
	pc.API.BaseURL = strings.TrimRight(strings.TrimSpace(pc.API.BaseURL), "/")
	pc.Session.Backend = strings.ToLower(strings.TrimSpace(pc.Session.Backend))
	pc.Session.Redis.Addr = strings.TrimSpace(pc.Session.Redis.Addr)
	pc.Session.Redis.Key = strings.TrimSpace(pc.Session.Redis.Key)
	if pc.Session.Redis.Key == "" {
		pc.Session.Redis.Key = defaultRedisKey
	}
	pc.Logging.Level = strings.ToLower(strings.TrimSpace(pc.Logging.Level))
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if !strings.HasPrefix(pc.API.BaseURL, "http://") && !strings.HasPrefix(pc.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL")
	}
	if pc.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if pc.API.Retries < 0 {
		return fmt.Errorf("api.retries must not be negative")
	}
	switch pc.Session.Backend {
	case SessionBackendFile:
	case SessionBackendRedis:
		if pc.Session.Redis.Addr == "" {
			return fmt.Errorf("session.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("session.backend must be 'file' or 'redis'")
	}
	if pc.Dashboard.DisplayCap < 1 {
		return fmt.Errorf("dashboard.display_cap must be >= 1")
	}
	switch pc.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error")
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}

// writeBaseURL rewrites api.base_url in the config file in place, keeping
// every other key and comment as the user left them.
func (c *Config) writeBaseURL(baseURL string) error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte(defaultProjectConfigYAML)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("config: %s is not a yaml mapping", path)
	}
	api := mappingValue(doc.Content[0], "api")
	if api == nil {
		api = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		appendMapping(doc.Content[0], "api", api)
	}
	if api.Kind != yaml.MappingNode {
		return fmt.Errorf("config: %s: api must be a mapping", path)
	}
	value := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: baseURL}
	if current := mappingValue(api, "base_url"); current != nil {
		value.LineComment = current.LineComment
		*current = *value
	} else {
		appendMapping(api, "base_url", value)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.MkdirAll(c.WardProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure ward dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}

func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func appendMapping(mapping *yaml.Node, key string, value *yaml.Node) {
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}
