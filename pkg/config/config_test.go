package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "always", cfg.Share.MixPolicy)
	assert.Equal(t, "when_silent", cfg.Share.RestorePolicy)
	assert.True(t, cfg.Microphone.PublishOnJoin)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9000"
share:
  mix_policy: never
  restore_policy: when_consumed
microphone:
  device_id: "hw:1"
  reacquire_attempts: 5
  reacquire_delay: 1s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "never", cfg.Share.MixPolicy)
	assert.Equal(t, "when_consumed", cfg.Share.RestorePolicy)
	assert.Equal(t, "hw:1", cfg.Microphone.DeviceID)
	assert.Equal(t, 5, cfg.Microphone.ReacquireAttempts)
	assert.Equal(t, time.Second, cfg.Microphone.ReacquireDelay)
	// untouched sections keep their defaults
	assert.Equal(t, 48000, cfg.Capture.SampleRate)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SHARECAST_SERVER_ADDRESS", ":7000")
	t.Setenv("SHARECAST_JWT_SECRET", "s3cret")
	t.Setenv("SHARECAST_REDIS_ADDRESS", "redis:6379")
	t.Setenv("SHARECAST_DISPLAY_INDEX", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
	assert.Equal(t, 1, cfg.Capture.DisplayIndex)
}

func TestLoad_BadDisplayIndexEnv(t *testing.T) {
	t.Setenv("SHARECAST_DISPLAY_INDEX", "primary")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server address", func(c *Config) { c.Server.Address = "" }},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"half port range", func(c *Config) { c.WebRTC.PortRange.Min = 5000 }},
		{"inverted port range", func(c *Config) {
			c.WebRTC.PortRange.Min = 6000
			c.WebRTC.PortRange.Max = 5000
		}},
		{"zero frame rate", func(c *Config) { c.Capture.FrameRate = 0 }},
		{"three channels", func(c *Config) { c.Capture.ChannelCount = 3 }},
		{"no reacquire attempts", func(c *Config) { c.Microphone.ReacquireAttempts = 0 }},
		{"unknown mix policy", func(c *Config) { c.Share.MixPolicy = "sometimes" }},
		{"unknown restore policy", func(c *Config) { c.Share.RestorePolicy = "always" }},
		{"tracing without url", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.JaegerURL = ""
		}},
		{"redis without channel", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Channel = ""
		}},
		{"postgres without dsn", func(c *Config) { c.Postgres.Enabled = true }},
		{"auth without secret", func(c *Config) { c.Auth.Enabled = true }},
		{"rate limit without rps", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.HTTP.RequestsPerSecond = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_RateLimitingDisabledIgnoresZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 0

	assert.NoError(t, cfg.Validate())
}
