package bedsvc

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultHost is the loopback interface used when no host override is provided.
	DefaultHost = "127.0.0.1"
	// DefaultPort matches the dashboard's default api.base_url.
	DefaultPort = 5000
	// DefaultBedCount is how many vacant beds a fresh service starts with.
	DefaultBedCount = 12
	// DefaultTokenTTL bounds issued bearer tokens to one shift.
	DefaultTokenTTL = 12 * time.Hour
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 15 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
)

// Settings captures runtime configuration for the bed service.
type Settings struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	BedCount     int           `mapstructure:"bed_count"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() Settings {
	s := Settings{}
	s.normalize()
	return s
}

// LoadSettings reads settings from the file at path (any format viper
// understands) and applies BEDSVC_* environment overrides. An empty path
// skips the file.
func LoadSettings(path string) (Settings, error) {
	var settings Settings
	if path = strings.TrimSpace(path); path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("bedsvc: read settings %s: %w", path, err)
		}
		if err := v.Unmarshal(&settings); err != nil {
			return Settings{}, fmt.Errorf("bedsvc: decode settings %s: %w", path, err)
		}
	}
	settings.applyEnvOverrides()
	settings.normalize()
	if settings.JWTSecret == "" {
		return Settings{}, fmt.Errorf("bedsvc: jwt_secret is required (set BEDSVC_JWT_SECRET)")
	}
	return settings, nil
}

func (s *Settings) applyEnvOverrides() {
	if s == nil {
		return
	}
	if host := strings.TrimSpace(os.Getenv("BEDSVC_HOST")); host != "" {
		s.Host = host
	}
	if port := strings.TrimSpace(os.Getenv("BEDSVC_PORT")); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && isValidPort(parsed) {
			s.Port = parsed
		}
	}
	if secret := strings.TrimSpace(os.Getenv("BEDSVC_JWT_SECRET")); secret != "" {
		s.JWTSecret = secret
	}
	if count := strings.TrimSpace(os.Getenv("BEDSVC_BED_COUNT")); count != "" {
		if parsed, err := strconv.Atoi(count); err == nil && parsed > 0 {
			s.BedCount = parsed
		}
	}
}

func (s *Settings) normalize() {
	if s == nil {
		return
	}
	if !isValidPort(s.Port) {
		s.Port = DefaultPort
	}
	s.fillDefaults()
}

// fillDefaults leaves the port alone so tests can bind port 0.
func (s *Settings) fillDefaults() {
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = DefaultHost
	}
	s.JWTSecret = strings.TrimSpace(s.JWTSecret)
	if s.TokenTTL <= 0 {
		s.TokenTTL = DefaultTokenTTL
	}
	if s.BedCount <= 0 {
		s.BedCount = DefaultBedCount
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}
