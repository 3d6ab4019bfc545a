package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.AgentPort == "" {
		t.Fatalf("expected default agent port")
	}
	if cfg.CollectorURL == "" {
		t.Fatalf("expected default collector url")
	}
	if cfg.SampleIntervalMS <= 0 {
		t.Fatalf("expected default sample interval")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AGENT_PORT", ":9000")
	t.Setenv("COLLECTOR_URL", "http://collector:9090")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("SAMPLE_INTERVAL_MS", "2500")

	cfg := Load()
	if cfg.AgentPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.CollectorURL != "http://collector:9090" {
		t.Fatalf("expected override collector url")
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("expected override redis")
	}
	if cfg.SampleIntervalMS != 2500 {
		t.Fatalf("expected override interval")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := Load()
	cfg.CollectorURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for collector url")
	}

	cfg = Load()
	cfg.OriginLat = 123
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for origin latitude")
	}
}
