package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PASSWORD", "pw")
	for _, k := range []string{"DB_PORT", "DB_USER", "DB_NAME", "HTTP_ADDR", "PUSH_FRESHNESS", "RATE_LIMIT_PER_MINUTE", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 30*time.Second, cfg.PushFreshness)
	assert.Equal(t, int64(120), cfg.RateLimitPerMinute)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "postgres://postgres:pw@db:5432/eventmaster?sslmode=disable", cfg.DatabaseURL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown store":    {"STORE_DRIVER": "mongo"},
		"jwt no secret":    {"STORE_DRIVER": "memory", "AUTH_MODE": "jwt", "JWT_SECRET": ""},
		"firebase memory":  {"STORE_DRIVER": "memory", "AUTH_MODE": "firebase"},
		"bad freshness":    {"PUSH_FRESHNESS": "soon"},
		"bad log level":    {"LOG_LEVEL": "loud"},
		"zero rate":        {"STORE_DRIVER": "memory", "AUTH_MODE": "jwt", "JWT_SECRET": "x", "RATE_LIMIT_PER_MINUTE": "0"},
		"unknown authmode": {"AUTH_MODE": "saml"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDatabaseURLOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u@h/d")
	assert.Equal(t, "postgres://u@h/d", GetDatabaseURL())
}

func TestLoadFirebaseConfigRequiresAllVariables(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "proj")
	t.Setenv("FIREBASE_PRIVATE_KEY", "")
	_, err := LoadFirebaseConfig()
	assert.Error(t, err)
}
