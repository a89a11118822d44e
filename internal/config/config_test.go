package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("AVAILABILITY_HORIZON_DAYS", "")
	t.Setenv("EVENTS_SINK", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.AvailabilityHorizonDays != 14 {
		t.Fatalf("expected 14 day horizon, got %d", cfg.AvailabilityHorizonDays)
	}
	if cfg.SearchPageSize != 5 {
		t.Fatalf("expected search page size 5, got %d", cfg.SearchPageSize)
	}
	if cfg.ContextTTL != 0 {
		t.Fatalf("expected contexts to persist by default, got ttl %s", cfg.ContextTTL)
	}
	if cfg.EventsSink != "none" {
		t.Fatalf("expected events sink none, got %s", cfg.EventsSink)
	}
	if cfg.LLMTimeout != 4*time.Second {
		t.Fatalf("expected 4s llm timeout, got %s", cfg.LLMTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("LLM_MAX_RETRIES", "4")
	t.Setenv("LLM_RATE_PER_SECOND", "2.5")
	t.Setenv("LOCK_TTL", "3s")
	t.Setenv("EVENTS_SINK", " SQS ")
	t.Setenv("OUTBOX_ENABLED", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %#v", cfg.CORSAllowedOrigins)
	}
	if cfg.LLMMaxRetries != 4 {
		t.Fatalf("expected retries override, got %d", cfg.LLMMaxRetries)
	}
	if cfg.LLMRatePerSecond != 2.5 {
		t.Fatalf("expected rate override, got %v", cfg.LLMRatePerSecond)
	}
	if cfg.LockTTL != 3*time.Second {
		t.Fatalf("expected lock ttl override, got %s", cfg.LockTTL)
	}
	if cfg.EventsSink != "sqs" {
		t.Fatalf("expected normalized sink, got %q", cfg.EventsSink)
	}
	if !cfg.OutboxEnabled {
		t.Fatal("expected outbox enabled")
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{ClinicTimezone: "Not/AZone"}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC fallback")
	}
	cfg.ClinicTimezone = "Asia/Kolkata"
	if cfg.Location().String() != "Asia/Kolkata" {
		t.Fatalf("expected Asia/Kolkata, got %s", cfg.Location())
	}
}
