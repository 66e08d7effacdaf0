package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"

	AuthFirebase = "firebase"
	AuthJWT      = "jwt"
)

type Config struct {
	HTTPAddr    string
	StoreDriver string
	RedisAddr   string
	DatabaseURL string
	KMSKeyID    string
	AuthMode    string
	JWTSecret   string
	AppBaseURL  string

	PushIconURL   string
	PushFreshness time.Duration

	RateLimitPerMinute int64
	LogLevel           slog.Level
	LogFormat          string
}

// LoadEnv reads .env into the environment when present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Warning: .env file not found", "error", err)
	}
}

func Load() (*Config, error) {
	LoadEnv()

	freshness, err := time.ParseDuration(getEnv("PUSH_FRESHNESS", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PUSH_FRESHNESS: %w", err)
	}

	perMinute, err := strconv.ParseInt(getEnv("RATE_LIMIT_PER_MINUTE", "120"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", StoreFirestore)),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		DatabaseURL:        GetDatabaseURL(),
		KMSKeyID:           os.Getenv("AWS_KMS_KEY_ID"),
		AuthMode:           strings.ToLower(getEnv("AUTH_MODE", AuthFirebase)),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AppBaseURL:         os.Getenv("APP_BASE_URL"),
		PushIconURL:        getEnv("PUSH_ICON_URL", "/favicon.ico"),
		PushFreshness:      freshness,
		RateLimitPerMinute: perMinute,
		LogLevel:           level,
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreFirestore, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.AuthMode {
	case AuthFirebase:
		if c.StoreDriver == StoreMemory {
			return fmt.Errorf("AUTH_MODE=firebase requires STORE_DRIVER=firestore")
		}
	case AuthJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET environment variable is required when AUTH_MODE=jwt")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	if c.PushFreshness <= 0 {
		return fmt.Errorf("PUSH_FRESHNESS must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	return nil
}

// Logger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func (c *Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func GetDatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPassword := getEnv("DB_PASSWORD", "")
	dbName := getEnv("DB_NAME", "eventmaster")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPassword, dbHost, dbPort, dbName)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
