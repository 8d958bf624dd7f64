// Package config loads the server configuration from scholarpage.yaml with
// SCHOLARPAGE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/gabrielmiguelok/scholarpage/pkg/core"
	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
	"github.com/gabrielmiguelok/scholarpage/pkg/transport"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "scholarpage.yaml"

// EnvPrefix marks environment overrides: SCHOLARPAGE_SERVER__ADDR sets
// server.addr. A double underscore separates levels so keys may keep their
// own underscores.
const EnvPrefix = "SCHOLARPAGE_"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatZap  = "zap"
)

// Config is the top-level server configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server" koanf:"server"`
	Content     ContentConfig     `yaml:"content" koanf:"content"`
	Log         LogConfig         `yaml:"log" koanf:"log"`
	Live        LiveConfig        `yaml:"live" koanf:"live"`
	Preferences PreferencesConfig `yaml:"preferences" koanf:"preferences"`
	Dev         DevConfig         `yaml:"dev" koanf:"dev"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" koanf:"addr"`
	Title           string        `yaml:"title" koanf:"title"`
	ImagesDir       string        `yaml:"images_dir" koanf:"images_dir"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" koanf:"shutdown_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout" koanf:"read_timeout"`
	CookieSecure    bool          `yaml:"cookie_secure" koanf:"cookie_secure"`
}

// ContentConfig says where content files come from. BaseURL wins over Dir.
type ContentConfig struct {
	Dir         string `yaml:"dir" koanf:"dir"`
	BaseURL     string `yaml:"base_url" koanf:"base_url"`
	CatalogDir  string `yaml:"catalog_dir" koanf:"catalog_dir"`
	Concurrency int    `yaml:"concurrency" koanf:"concurrency"`
}

// LogConfig selects the logging backend.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}

// LiveConfig tunes websocket sessions.
type LiveConfig struct {
	AllowedOrigins    []string      `yaml:"allowed_origins" koanf:"allowed_origins"`
	InsecureDevMode   bool          `yaml:"insecure_dev_mode" koanf:"insecure_dev_mode"`
	MaxSessions       int           `yaml:"max_sessions" koanf:"max_sessions"`
	RateLimit         int           `yaml:"rate_limit" koanf:"rate_limit"`
	EventTimeout      time.Duration `yaml:"event_timeout" koanf:"event_timeout"`
	MountTimeout      time.Duration `yaml:"mount_timeout" koanf:"mount_timeout"`
	SessionIdle       time.Duration `yaml:"session_idle" koanf:"session_idle"`
	NegotiateLanguage bool          `yaml:"negotiate_language" koanf:"negotiate_language"`
}

// PreferencesConfig controls visitor preference storage.
type PreferencesConfig struct {
	TTL time.Duration `yaml:"ttl" koanf:"ttl"`
}

// DevConfig enables the content watcher.
type DevConfig struct {
	Watch    bool          `yaml:"watch" koanf:"watch"`
	Debounce time.Duration `yaml:"debounce" koanf:"debounce"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	timeouts := core.DefaultTimeoutConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Title:           "Homepage",
			ImagesDir:       "images",
			ShutdownTimeout: 30 * time.Second,
			ReadTimeout:     15 * time.Second,
		},
		Content: ContentConfig{
			Dir:         "content",
			Concurrency: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: FormatText,
		},
		Live: LiveConfig{
			MaxSessions:  1000,
			RateLimit:    10,
			EventTimeout: timeouts.ComponentEvent,
			MountTimeout: timeouts.ComponentMount,
			SessionIdle:  timeouts.SessionIdle,
		},
		Preferences: PreferencesConfig{
			TTL: 365 * 24 * time.Hour,
		},
		Dev: DevConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// Load reads path, if it exists, over the defaults and then applies
// environment overrides. List values in the environment are comma separated.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// envKey maps SCHOLARPAGE_LIVE__MAX_SESSIONS to live.max_sessions.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

var validFormats = map[string]bool{
	FormatText: true,
	FormatJSON: true,
	FormatZap:  true,
}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Content.Dir == "" && c.Content.BaseURL == "" {
		errs = append(errs, errors.New("content.dir or content.base_url is required"))
	}
	if c.Content.BaseURL != "" && !strings.HasPrefix(c.Content.BaseURL, "http://") && !strings.HasPrefix(c.Content.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("content.base_url %q must be http or https", c.Content.BaseURL))
	}
	if c.Content.Concurrency < 0 {
		errs = append(errs, errors.New("content.concurrency must be non-negative"))
	}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Errorf("log.format %q: must be one of text, json, zap", c.Log.Format))
	}
	if c.Live.MaxSessions < 0 {
		errs = append(errs, errors.New("live.max_sessions must be non-negative"))
	}
	if c.Live.RateLimit < 0 {
		errs = append(errs, errors.New("live.rate_limit must be non-negative"))
	}
	if c.Live.EventTimeout <= 0 || c.Live.MountTimeout <= 0 {
		errs = append(errs, errors.New("live.event_timeout and live.mount_timeout must be positive"))
	}
	if c.Preferences.TTL < 0 {
		errs = append(errs, errors.New("preferences.ttl must be non-negative"))
	}
	if c.Dev.Watch && c.Content.Dir == "" {
		errs = append(errs, errors.New("dev.watch needs content.dir"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Timeouts returns the component callback bounds.
func (c *Config) Timeouts() core.TimeoutConfig {
	t := core.DefaultTimeoutConfig()
	t.ComponentEvent = c.Live.EventTimeout
	t.ComponentMount = c.Live.MountTimeout
	t.SessionIdle = c.Live.SessionIdle
	return t
}

// WebSocket returns the origin policy.
func (c *Config) WebSocket() *transport.WebSocketConfig {
	ws := transport.DefaultWebSocketConfig()
	if len(c.Live.AllowedOrigins) > 0 {
		ws.AllowedOrigins = c.Live.AllowedOrigins
	}
	ws.InsecureDevMode = c.Live.InsecureDevMode
	return ws
}

// Logger builds the configured logger.
func (c *Config) Logger() (logging.Logger, error) {
	level := logging.ParseLevel(c.Log.Level)
	switch c.Log.Format {
	case FormatZap:
		z, err := logging.NewProductionZapLogger(level)
		if err != nil {
			return nil, fmt.Errorf("building zap logger: %w", err)
		}
		return z, nil
	case FormatJSON:
		return logging.NewSlogLogger(logging.WithLevel(level), logging.WithJSON()), nil
	default:
		return logging.NewSlogLogger(logging.WithLevel(level)), nil
	}
}
