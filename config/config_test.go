package config

import (
	"testing"
	"time"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.HTTP.Port)
	}
	if cfg.JWT.AccessTokenTTL != 15*time.Minute {
		t.Errorf("expected access ttl 15m, got %s", cfg.JWT.AccessTokenTTL)
	}
	if cfg.Slots.MinDuration != 5 || cfg.Slots.MaxDuration != 240 {
		t.Errorf("unexpected slot bounds %d..%d", cfg.Slots.MinDuration, cfg.Slots.MaxDuration)
	}
	if !cfg.Cache.Enabled {
		t.Error("expected cache enabled by default")
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("expected cache ttl 5m, got %s", cfg.Cache.TTL)
	}
	if cfg.RabbitMQ.Enabled {
		t.Error("expected rabbitmq disabled by default")
	}
}

func TestNewConfig_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("JWT_REFRESH_TOKEN_TTL", "48h")
	t.Setenv("SLOT_MAX_RECURRENCE_WEEKS", "4")
	t.Setenv("S3_USE_SSL", "false")

	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.HTTP.Port)
	}
	if cfg.JWT.RefreshTokenTTL != 48*time.Hour {
		t.Errorf("expected refresh ttl 48h, got %s", cfg.JWT.RefreshTokenTTL)
	}
	if cfg.Slots.MaxRecurrenceWeeks != 4 {
		t.Errorf("expected 4 weeks, got %d", cfg.Slots.MaxRecurrenceWeeks)
	}
	if cfg.S3.UseSSL {
		t.Error("expected S3_USE_SSL=false")
	}
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero min duration", "SLOT_MIN_DURATION", "0"},
		{"max below min", "SLOT_MAX_DURATION", "1"},
		{"no recurrence", "SLOT_MAX_RECURRENCE_WEEKS", "0"},
		{"bad duration", "HTTP_READ_TIMEOUT", "ten seconds"},
		{"zero cache ttl", "CACHE_TTL", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := NewConfig(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestNewConfig_ProductionRequiresSigningKey(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	if _, err := NewConfig(); err == nil {
		t.Fatal("expected error for default signing key in production")
	}

	t.Setenv("JWT_SIGNING_KEY", "s3cr3t")
	if _, err := NewConfig(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
