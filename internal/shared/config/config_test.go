package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BETTING_WINDOW_POLICY", "open")
	t.Setenv("PERMISSION_CACHE_TTL", "not-a-duration")
	t.Setenv("HTTP_PORT", "18084")

	cfg := Load()

	if cfg.BettingWindowPolicy != "open" {
		t.Fatalf("expected policy from env, got %q", cfg.BettingWindowPolicy)
	}
	if cfg.PermissionCacheTTL != 5*time.Minute {
		t.Fatalf("expected default ttl on invalid value, got %s", cfg.PermissionCacheTTL)
	}
	if cfg.HTTPPort != "18084" {
		t.Fatalf("expected http port from env, got %q", cfg.HTTPPort)
	}
	if cfg.TopicMarketEvents != "market_events" {
		t.Fatalf("unexpected default topic %q", cfg.TopicMarketEvents)
	}
}

func TestGetDuration(t *testing.T) {
	t.Setenv("SOME_TTL", "30s")
	if got := getDuration("SOME_TTL", time.Minute); got != 30*time.Second {
		t.Fatalf("expected 30s, got %s", got)
	}
	if got := getDuration("MISSING_TTL", time.Minute); got != time.Minute {
		t.Fatalf("expected default, got %s", got)
	}
}

func TestGetInt(t *testing.T) {
	t.Setenv("REFUND_RETRIES", "5")
	if got := getInt("REFUND_RETRIES", 3); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	t.Setenv("REFUND_RETRIES", "-1")
	if got := getInt("REFUND_RETRIES", 3); got != 3 {
		t.Fatalf("expected default on negative value, got %d", got)
	}
}

func TestGetList(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "http://a.local, ,http://b.local")
	got := getList("CORS_ORIGINS", "")
	if len(got) != 2 || got[0] != "http://a.local" || got[1] != "http://b.local" {
		t.Fatalf("unexpected list %v", got)
	}
}
