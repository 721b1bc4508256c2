package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TRACKER_SESSION_DIR", "/tmp/tracker-test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.APIBaseURL)
	assert.Equal(t, 15*time.Second, cfg.APITimeout)
	assert.Equal(t, "/login", cfg.LoginPath)
	assert.Equal(t, SessionBackendFile, cfg.SessionBackend)
	assert.Equal(t, "/tmp/tracker-test", cfg.SessionDir)
	assert.Equal(t, "", cfg.NATSURL)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("TRACKER_API_BASE_URL", "https://tracker.example.com/api/")
	t.Setenv("TRACKER_API_TIMEOUT", "3s")
	t.Setenv("TRACKER_SESSION_BACKEND", SessionBackendRedis)
	t.Setenv("REDIS_DB", "4")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("TRACKER_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://tracker.example.com/api", cfg.APIBaseURL)
	assert.Equal(t, 3*time.Second, cfg.APITimeout)
	assert.Equal(t, SessionBackendRedis, cfg.SessionBackend)
	assert.Equal(t, 4, cfg.RedisDB)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	t.Setenv("TRACKER_API_TIMEOUT", "soon")
	t.Setenv("REDIS_DB", "two")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.APITimeout)
	assert.Equal(t, 0, cfg.RedisDB)
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("TRACKER_SESSION_BACKEND", "cookie")

	_, err := LoadConfig()
	assert.Error(t, err)
}
