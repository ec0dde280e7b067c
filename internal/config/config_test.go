package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8080" || cfg.MetricsPort != "9090" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected server defaults %+v", cfg)
	}
	if !cfg.SeedFixtures || cfg.RSVPBaseURL != "https://example.com/rsvp" {
		t.Fatalf("unexpected data defaults %+v", cfg)
	}
	if cfg.DeliveryLatency != 500*time.Millisecond || cfg.SendStagger != 500*time.Millisecond || cfg.ReadLatency != 3*time.Second {
		t.Fatalf("unexpected delivery defaults %+v", cfg)
	}
	if cfg.ReadProbability != 0.6 || cfg.BreakerMaxFailures != 10 || cfg.BreakerTimeout != 20*time.Second {
		t.Fatalf("unexpected breaker defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("SEED_FIXTURES", "false")
	t.Setenv("READ_LATENCY", "1m")
	t.Setenv("STATUS_WEBHOOK_TOKEN", "secret")
	cfg := Load()
	if cfg.Port != "3000" || cfg.SeedFixtures || cfg.ReadLatency != time.Minute || cfg.StatusWebhookToken != "secret" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadPanicsOnBadValue(t *testing.T) {
	t.Setenv("READ_PROBABILITY", "often")
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	Load()
}
