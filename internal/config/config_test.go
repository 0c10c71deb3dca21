package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/booking")
	t.Setenv("STATIC_TOKENS", " a , ,b ")
	t.Setenv("CALENDAR_TIMEOUT", "")
	t.Setenv("MAX_SLOTS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.CalendarTimeout != 10*time.Second {
		t.Fatalf("expected 10s calendar timeout, got %s", cfg.CalendarTimeout)
	}
	if cfg.TokenRefreshAfter != 50*time.Minute {
		t.Fatalf("expected 50m refresh threshold, got %s", cfg.TokenRefreshAfter)
	}
	if cfg.MaxSlots != 10 {
		t.Fatalf("expected max slots 10, got %d", cfg.MaxSlots)
	}
	if len(cfg.StaticTokens) != 2 || cfg.StaticTokens[0] != "a" || cfg.StaticTokens[1] != "b" {
		t.Fatalf("unexpected static tokens %q", cfg.StaticTokens)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/booking")
	t.Setenv("JWT_HMAC_SECRET", "secret")
	t.Setenv("CALENDAR_TIMEOUT", "3s")
	t.Setenv("MAX_SLOTS", "not-a-number")
	t.Setenv("OUTBOX_SCHEDULE", "@every 30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CalendarTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %s", cfg.CalendarTimeout)
	}
	if cfg.MaxSlots != 10 {
		t.Fatalf("invalid int should fall back to default, got %d", cfg.MaxSlots)
	}
	if cfg.OutboxSchedule != "@every 30s" {
		t.Fatalf("unexpected schedule %q", cfg.OutboxSchedule)
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_HMAC_SECRET", "secret")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoad_RequiresAuth(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/booking")
	t.Setenv("JWT_HMAC_SECRET", "")
	t.Setenv("STATIC_TOKENS", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without any auth configured")
	}
}
