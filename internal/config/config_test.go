package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir is the pre-Go-1.24 equivalent of t.Chdir: the installed
// toolchain (go1.21) does not have testing.T.Chdir.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "https://hero-sms.com/stubs/handler_api.php", cfg.Upstream.BaseURL)
	assert.Equal(t, 15, cfg.Upstream.TimeoutSeconds)
	assert.Equal(t, "hero_api_key", cfg.Session.CookieName)
	assert.Equal(t, 5, cfg.Poll.DefaultIntervalSeconds)
	assert.Equal(t, 3, cfg.Poll.MinIntervalSeconds)
	assert.Equal(t, 60, cfg.Poll.MaxIntervalSeconds)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":8080"
poll:
  min_interval_seconds: 5
  max_interval_seconds: 30
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Poll.MinIntervalSeconds)
	assert.Equal(t, 30, cfg.Poll.MaxIntervalSeconds)
	// Untouched sections keep their defaults.
	assert.Equal(t, "hero_api_key", cfg.Session.CookieName)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("HERO_SMS_BASE_URL", "http://localhost:1234/stub")
	t.Setenv("HERO_SMS_API_KEY", "env-key")
	t.Setenv("POLL_DEFAULT_INTERVAL_SECONDS", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:1234/stub", cfg.Upstream.BaseURL)
	assert.Equal(t, "env-key", cfg.Session.APIKey)
	assert.Equal(t, 7, cfg.Poll.DefaultIntervalSeconds)
}

func TestInvertedPollBoundsRejected(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("POLL_MIN_INTERVAL_SECONDS", "90")

	_, err := Load("")
	assert.Error(t, err)
}
