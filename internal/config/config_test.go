// internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"FORCA_ENV", "PORT", "LOG_LEVEL", "STORE_BACKEND", "DATABASE_URL", "PG_HOST", "MAX_PLAYERS", "WATCH_INTERVAL_MS", "REDIS_DB"} {
		t.Setenv(k, "")
	}
	c := Load()
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, logrus.InfoLevel, c.LogLevel)
	assert.Equal(t, "redis", c.StoreBackend)
	assert.Equal(t, "localhost:6379", c.Redis.Addr)
	assert.Empty(t, c.DatabaseURL)
	assert.Equal(t, 6, c.MaxPlayers)
	assert.Equal(t, 3*time.Second, c.WatchInterval)
	assert.False(t, c.Production())
	assert.Equal(t, []string{"https://*", "http://*"}, c.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FORCA_ENV", "production")
	t.Setenv("ALLOWED_ORIGINS", "https://forca.app, https://www.forca.app,")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_HOST", "db")
	t.Setenv("POSTGRES_USER", "forca")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("PG_PORT", "")
	t.Setenv("PG_DATABASE", "forca")
	t.Setenv("MAX_PLAYERS", "4")
	t.Setenv("WATCH_INTERVAL_MS", "250")
	t.Setenv("REDIS_DB", "not-a-number")

	c := Load()
	assert.True(t, c.Production())
	assert.Equal(t, []string{"https://forca.app", "https://www.forca.app"}, c.AllowedOrigins)
	assert.Equal(t, logrus.DebugLevel, c.LogLevel)
	assert.Equal(t, "memory", c.StoreBackend)
	assert.Equal(t, "postgres://forca:secret@db:5432/forca", c.DatabaseURL)
	assert.Equal(t, 4, c.MaxPlayers)
	assert.Equal(t, 250*time.Millisecond, c.WatchInterval)
	assert.Zero(t, c.Redis.DB)
}
