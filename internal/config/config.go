package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	Port        string

	RedisAddr     string
	RedisPassword string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	CalendarEndpoint   string

	JWTSecret    string
	StaticTokens []string

	CalendarTimeout   time.Duration
	TokenRefreshAfter time.Duration
	StoreTimeout      time.Duration
	ShutdownTimeout   time.Duration

	MaxSlots         int
	DefaultDaysAhead int

	OutboxSchedule    string
	OutboxMaxAttempts int
	IdempotencyTTL    time.Duration
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}

	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		Port:               getEnv("PORT", "8080"),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		CalendarEndpoint:   getEnv("GOOGLE_CALENDAR_ENDPOINT", ""),
		JWTSecret:          strings.TrimSpace(getEnv("JWT_HMAC_SECRET", "")),
		StaticTokens:       splitList(getEnv("STATIC_TOKENS", "")),
		CalendarTimeout:    getEnvDuration("CALENDAR_TIMEOUT", 10*time.Second),
		TokenRefreshAfter:  getEnvDuration("TOKEN_REFRESH_AFTER", 50*time.Minute),
		StoreTimeout:       getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxSlots:           getEnvInt("MAX_SLOTS", 10),
		DefaultDaysAhead:   getEnvInt("DEFAULT_DAYS_AHEAD", 7),
		OutboxSchedule:     getEnv("OUTBOX_SCHEDULE", "@every 1m"),
		OutboxMaxAttempts:  getEnvInt("OUTBOX_MAX_ATTEMPTS", 10),
		IdempotencyTTL:     getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL required")
	}
	if cfg.JWTSecret == "" && len(cfg.StaticTokens) == 0 {
		return nil, errors.New("JWT_HMAC_SECRET or STATIC_TOKENS required")
	}
	return cfg, nil
}

// CalendarEnabled reports whether the Google OAuth client is configured.
func (c *Config) CalendarEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
		log.Printf("config: invalid %s=%q, using %d", key, v, def)
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
		log.Printf("config: invalid %s=%q, using %s", key, v, def)
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
