package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ORACLE_PROVIDER", "")
	t.Setenv("ORACLE_TIMEOUT_SECONDS", "")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "")
	t.Setenv("WEB_PORT", "")

	cfg := Load()

	if cfg.Oracle.Provider != "gemini" {
		t.Errorf("expected default provider gemini, got %q", cfg.Oracle.Provider)
	}
	if cfg.Oracle.TimeoutSeconds != 60 {
		t.Errorf("expected default timeout 60, got %d", cfg.Oracle.TimeoutSeconds)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected default max open conns 25, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Web.Port)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ORACLE_PROVIDER", "openai")
	t.Setenv("ORACLE_TIMEOUT_SECONDS", "15")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("DATABASE_URL", "postgres://localhost/classtrack")
	t.Setenv("WEB_PORT", "9090")

	cfg := Load()

	if cfg.Oracle.Provider != "openai" {
		t.Errorf("expected provider openai, got %q", cfg.Oracle.Provider)
	}
	if cfg.Oracle.TimeoutSeconds != 15 {
		t.Errorf("expected timeout 15, got %d", cfg.Oracle.TimeoutSeconds)
	}
	if cfg.Gemini.APIKey != "test-key" {
		t.Errorf("expected gemini api key to be set")
	}
	if cfg.Database.URL != "postgres://localhost/classtrack" {
		t.Errorf("unexpected database url %q", cfg.Database.URL)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("DATABASE_MAX_IDLE_CONNS", "not-a-number")
	cfg := Load()
	if cfg.Database.MaxIdleConns != 5 {
		t.Errorf("expected fallback to default 5, got %d", cfg.Database.MaxIdleConns)
	}

	t.Setenv("DATABASE_MAX_IDLE_CONNS", "-3")
	cfg = Load()
	if cfg.Database.MaxIdleConns != 5 {
		t.Errorf("expected negative value to fall back to 5, got %d", cfg.Database.MaxIdleConns)
	}
}

func TestGetModelPricing(t *testing.T) {
	cfg := Load()

	pricing := cfg.GetModelPricing("gemini-2.5-flash")
	if pricing.Input == 0 || pricing.Output == 0 {
		t.Errorf("expected non-zero pricing for gemini-2.5-flash, got %+v", pricing)
	}

	unknown := cfg.GetModelPricing("no-such-model")
	if unknown.Input != 0 || unknown.Output != 0 {
		t.Errorf("expected zero pricing for unknown model, got %+v", unknown)
	}
}
