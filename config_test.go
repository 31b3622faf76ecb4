package realtime

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, DefaultPath, cfg.Path)
	require.Equal(t, DefaultTokenParam, cfg.TokenParam)
	require.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
	require.Equal(t, DefaultReconnectBase, cfg.ReconnectBase)
	require.Equal(t, DefaultReconnectMax, cfg.ReconnectMax)
	require.Equal(t, DefaultReconnectJitter, cfg.ReconnectJitter)
	require.Equal(t, DefaultMaxReconnectAttempts, cfg.MaxReconnectAttempts)
	require.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval)
	require.Equal(t, DefaultAuthMaxAttempts, cfg.AuthMaxAttempts)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		Host:              "factory.example.com:8443",
		Path:              "/realtime",
		ReconnectBase:     2 * time.Second,
		HeartbeatInterval: 5 * time.Second,
	}
	cfg.applyDefaults()

	require.Equal(t, "/realtime", cfg.Path)
	require.Equal(t, 2*time.Second, cfg.ReconnectBase)
	require.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	require.Equal(t, DefaultReconnectMax, cfg.ReconnectMax)
}

func TestValidateRequiresHostAndAuthURL(t *testing.T) {
	cfg := DefaultConfig()
	require.ErrorContains(t, cfg.Validate(), "host")

	cfg.Host = "factory.example.com"
	require.ErrorContains(t, cfg.Validate(), "auth_url")

	cfg.AuthURL = "https://factory.example.com/api/ws-token"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadTunables(t *testing.T) {
	base := DefaultConfig()
	base.Host = "factory.example.com"
	base.AuthURL = "https://factory.example.com/api/ws-token"

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative reconnect base", func(c *Config) { c.ReconnectBase = -time.Second }},
		{"max below base", func(c *Config) { c.ReconnectMax = c.ReconnectBase / 2 }},
		{"zero reconnect attempts", func(c *Config) { c.MaxReconnectAttempts = -1 }},
		{"zero auth attempts", func(c *Config) { c.AuthMaxAttempts = -1 }},
		{"negative heartbeat", func(c *Config) { c.HeartbeatInterval = -time.Second }},
		{"negative queue capacity", func(c *Config) { c.QueueCapacity = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("FLOOR_WS_HOST", "floor.example.com:8443")

	path := filepath.Join(t.TempDir(), "realtime.yaml")
	content := `
host: ${FLOOR_WS_HOST}
path: /realtime
secure: true
auth_url: https://floor.example.com/api/ws-token
max_reconnect_attempts: 5
queue_capacity: 128
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "floor.example.com:8443", cfg.Host)
	require.Equal(t, "/realtime", cfg.Path)
	require.True(t, cfg.Secure)
	require.Equal(t, 5, cfg.MaxReconnectAttempts)
	require.Equal(t, 128, cfg.QueueCapacity)
	// Unset fields pick up defaults.
	require.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incomplete.yaml")
	require.NoError(t, os.WriteFile(path, []byte("path: /realtime\n"), 0o600))

	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "host")
}
