package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
}

func TestParseDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Port != ":8080" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("expected 30m session ttl, got %v", cfg.SessionTTL)
	}
	if cfg.HitRateLimit != 60 {
		t.Fatalf("expected 60 hits per minute, got %d", cfg.HitRateLimit)
	}
	if cfg.MaxSessions != 10000 || cfg.SessionRateLimit != 10 {
		t.Fatalf("expected session limits 10000 and 10, got %d %d", cfg.MaxSessions, cfg.SessionRateLimit)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://localhost:5173" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestParseOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_ORIGINS", "https://vau.example")
	t.Setenv("HIT_LOG_TIMEOUT", "2s")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://vau.example" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.HitLogTimeout != 2*time.Second || cfg.RedisDB != 3 {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
}

func TestParseMissingRequired(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Parse()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseRejectsNonPositiveRateLimit(t *testing.T) {
	setRequired(t)
	t.Setenv("HIT_RATE_LIMIT", "0")
	if _, err := Parse(); err == nil {
		t.Fatal("expected error")
	}
}
