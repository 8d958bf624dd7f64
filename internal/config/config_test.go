package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	yaml := `
server:
  addr: ":9000"
  title: "Ada Lovelace"
content:
  base_url: "https://example.com/content"
log:
  format: json
live:
  allowed_origins: ["https://ada.example"]
  event_timeout: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("SCHOLARPAGE_LIVE__MAX_SESSIONS", "42")
	t.Setenv("SCHOLARPAGE_LOG__LEVEL", "debug")
	t.Setenv("SCHOLARPAGE_SERVER__COOKIE_SECURE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "Ada Lovelace", cfg.Server.Title)
	assert.True(t, cfg.Server.CookieSecure)
	assert.Equal(t, "https://example.com/content", cfg.Content.BaseURL)
	assert.Equal(t, FormatJSON, cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 42, cfg.Live.MaxSessions)
	assert.Equal(t, []string{"https://ada.example"}, cfg.Live.AllowedOrigins)
	assert.Equal(t, 2*time.Second, cfg.Live.EventTimeout)
	assert.Equal(t, 2*time.Second, cfg.Timeouts().ComponentEvent)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "live.max_sessions", envKey("SCHOLARPAGE_LIVE__MAX_SESSIONS"))
	assert.Equal(t, "dev.watch", envKey("SCHOLARPAGE_DEV__WATCH"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"no addr", func(c *Config) { c.Server.Addr = "" }, false},
		{"no content source", func(c *Config) { c.Content.Dir = "" }, false},
		{"base url only", func(c *Config) { c.Content.Dir = ""; c.Content.BaseURL = "http://x" }, true},
		{"bad base url", func(c *Config) { c.Content.BaseURL = "ftp://x" }, false},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, false},
		{"negative sessions", func(c *Config) { c.Live.MaxSessions = -1 }, false},
		{"zero event timeout", func(c *Config) { c.Live.EventTimeout = 0 }, false},
		{"watch without dir", func(c *Config) { c.Dev.Watch = true; c.Content.Dir = ""; c.Content.BaseURL = "http://x" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestWebSocket(t *testing.T) {
	cfg := Default()
	cfg.Live.InsecureDevMode = true
	ws := cfg.WebSocket()
	assert.True(t, ws.InsecureDevMode)

	cfg.Live.AllowedOrigins = []string{"https://a.example"}
	assert.Equal(t, []string{"https://a.example"}, cfg.WebSocket().AllowedOrigins)
}

func TestLogger(t *testing.T) {
	for _, format := range []string{FormatText, FormatJSON, FormatZap} {
		cfg := Default()
		cfg.Log.Format = format
		l, err := cfg.Logger()
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
	cfg := Default()
	cfg.Log.Format = FormatZap
	l, err := cfg.Logger()
	require.NoError(t, err)
	_, ok := l.(*logging.ZapLogger)
	assert.True(t, ok)
}
