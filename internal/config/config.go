// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/forca/internal/cache"
	"github.com/jason-s-yu/forca/internal/database"
	"github.com/jason-s-yu/forca/internal/game"
	"github.com/jason-s-yu/forca/internal/models"
	"github.com/sirupsen/logrus"
)

// Config is everything the binaries read from the environment. A .env file
// is loaded by the binaries through godotenv/autoload before Load runs.
type Config struct {
	Env      string
	Port     string
	LogLevel logrus.Level

	AllowedOrigins []string

	StoreBackend   string
	StoreNamespace string
	Redis          cache.RedisOptions
	ResultsQueue   string

	DatabaseURL string
	ModulesDir  string

	MaxPlayers    int
	WatchInterval time.Duration

	ArchiverBatchSize int
	ArchiverFlush     time.Duration
}

// Production reports whether FORCA_ENV is "production".
func (c Config) Production() bool {
	return c.Env == "production"
}

// Load reads the environment, falling back to development defaults.
func Load() Config {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}

	c := Config{
		Env:            getEnv("FORCA_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		LogLevel:       level,
		StoreBackend:   strings.ToLower(getEnv("STORE_BACKEND", "redis")),
		StoreNamespace: getEnv("STORE_NAMESPACE", cache.DefaultNamespace),
		Redis: cache.RedisOptions{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			DB:       getEnvInt("REDIS_DB", 0),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		ResultsQueue:      getEnv("RESULTS_QUEUE_NAME", cache.DefaultQueueName),
		DatabaseURL:       databaseURL(),
		ModulesDir:        os.Getenv("MODULES_DIR"),
		MaxPlayers:        getEnvInt("MAX_PLAYERS", models.DefaultMaxPlayers),
		WatchInterval:     time.Duration(getEnvInt("WATCH_INTERVAL_MS", int(game.DefaultWatchInterval/time.Millisecond))) * time.Millisecond,
		ArchiverBatchSize: getEnvInt("ARCHIVER_BATCH_SIZE", 20),
		ArchiverFlush:     time.Duration(getEnvInt("ARCHIVER_FLUSH_MS", 500)) * time.Millisecond,
	}

	if c.Production() {
		c.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))
	} else {
		c.AllowedOrigins = []string{"https://*", "http://*"}
	}
	return c
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the
// POSTGRES_* and PG_* variables. It is empty when neither is configured.
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	if os.Getenv("PG_HOST") == "" {
		return ""
	}
	return database.ConnString(
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("PG_HOST"),
		getEnv("PG_PORT", "5432"),
		os.Getenv("PG_DATABASE"),
	)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
