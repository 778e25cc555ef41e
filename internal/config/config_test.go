package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	if cfg.Server.Port != 8085 {
		t.Errorf("expected default port 8085, got %d", cfg.Server.Port)
	}
	if cfg.Pricing.DefaultBuyingPrice != 9.0 {
		t.Errorf("expected default buying price 9.0, got %v", cfg.Pricing.DefaultBuyingPrice)
	}
	if cfg.Pricing.DerivedCostRatio != 0.8 {
		t.Errorf("expected derived cost ratio 0.8, got %v", cfg.Pricing.DerivedCostRatio)
	}
	if cfg.Data.ReloadSchedule != "" {
		t.Errorf("reload schedule should be disabled by default, got %q", cfg.Data.ReloadSchedule)
	}
	if cfg.Address() != "localhost:8085" {
		t.Errorf("unexpected address %q", cfg.Address())
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_READ_TIMEOUT", "3s")
	t.Setenv("DATA_TRANSACTIONS_FILE", "tx.xlsx")
	t.Setenv("DATA_RELOAD_SCHEDULE", "@hourly")
	t.Setenv("MODELS_DB_PATH", "/tmp/m.db")
	t.Setenv("PRICING_DEFAULT_BUYING_PRICE", "7.5")
	t.Setenv("PRICING_WORKERS", "4")
	t.Setenv("SECURITY_ALLOWED_ORIGINS", "http://a,http://b")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 3*time.Second {
		t.Errorf("expected read timeout 3s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Data.TransactionsFile != "tx.xlsx" {
		t.Errorf("unexpected transactions file %q", cfg.Data.TransactionsFile)
	}
	if cfg.Data.ReloadSchedule != "@hourly" {
		t.Errorf("unexpected reload schedule %q", cfg.Data.ReloadSchedule)
	}
	if cfg.Models.DBPath != "/tmp/m.db" {
		t.Errorf("unexpected db path %q", cfg.Models.DBPath)
	}
	if cfg.Pricing.DefaultBuyingPrice != 7.5 {
		t.Errorf("expected buying price 7.5, got %v", cfg.Pricing.DefaultBuyingPrice)
	}
	if cfg.Pricing.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Pricing.Workers)
	}
	if len(cfg.Security.AllowedOrigins) != 2 {
		t.Errorf("expected 2 allowed origins, got %v", cfg.Security.AllowedOrigins)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "SERVER_PORT", "70000"},
		{"negative buying price", "PRICING_DEFAULT_BUYING_PRICE", "-1"},
		{"cost ratio above one", "PRICING_DERIVED_COST_RATIO", "1.5"},
		{"negative workers", "PRICING_WORKERS", "-2"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad log format", "LOG_FORMAT", "xml"},
		{"zero rate limit", "SECURITY_RATE_LIMIT_RPS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestGetEnvFloat_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_FLOAT", "abc")
	if got := getEnvFloat("SOME_FLOAT", 1.25); got != 1.25 {
		t.Errorf("expected fallback 1.25, got %v", got)
	}
}
