package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	durations := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
		{"LookbackWindow", cfg.Defense.LookbackWindow, time.Hour},
		{"AttemptRetention", cfg.Defense.AttemptRetention, 30 * 24 * time.Hour},
		{"ConnectTimeout", cfg.Database.ConnectTimeout, 10 * time.Second},
		{"StatementTimeout", cfg.Database.StatementTimeout, 5 * time.Second},
	}
	for _, tt := range durations {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	ints := []struct {
		name     string
		actual   int
		expected int
	}{
		{"MaxAttempts", cfg.Defense.MaxAttempts, 5},
		{"AdminMaxAttempts", cfg.Defense.AdminMaxAttempts, 3},
		{"CaptchaThreshold", cfg.Defense.CaptchaThreshold, 2},
		{"IPBlacklistThreshold", cfg.Defense.IPBlacklistThreshold, 10},
	}
	for _, tt := range ints {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %d, want %d", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Redis.URL != "" {
		t.Errorf("Redis.URL = %q, want empty", cfg.Redis.URL)
	}
	if len(cfg.Admin.APIKeys) != 0 {
		t.Errorf("Admin.APIKeys = %v, want empty", cfg.Admin.APIKeys)
	}
}

func TestLoad_RequiresDBPassword(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error for missing DB_PASSWORD")
	}
}

func TestLoad_CustomDefenseValues(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("DEFENSE_LOOKBACK_WINDOW", "30m")
	os.Setenv("DEFENSE_MAX_ATTEMPTS", "7")
	os.Setenv("DEFENSE_ADMIN_MAX_ATTEMPTS", "4")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.Defense.LookbackWindow != 30*time.Minute {
		t.Errorf("LookbackWindow = %v, want 30m", cfg.Defense.LookbackWindow)
	}
	if cfg.Defense.MaxAttempts != 7 || cfg.Defense.AdminMaxAttempts != 4 {
		t.Errorf("thresholds = %d/%d, want 7/4", cfg.Defense.MaxAttempts, cfg.Defense.AdminMaxAttempts)
	}
}

func TestLoad_AdminThresholdMustBeStricter(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("DEFENSE_MAX_ATTEMPTS", "3")
	os.Setenv("DEFENSE_ADMIN_MAX_ATTEMPTS", "5")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error when admin threshold exceeds regular threshold")
	}
}

func TestLoad_AdminAPIKeys(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("ADMIN_API_KEYS", "ops-1:aaaaaaaaaaaaaaaaaaaaaaaaaaaa, ops-2:bbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if got := cfg.Admin.APIKeys["ops-2"]; got != "bbbbbbbbbbbbbbbbbbbbbbbbbbbb" {
		t.Errorf("APIKeys[ops-2] = %q", got)
	}
}

func TestLoad_ProductionRequiresAdminKeys(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("ENV", "production")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error for missing ADMIN_API_KEYS in production")
	}
}

func TestParseAdminAPIKeys_Invalid(t *testing.T) {
	tests := []string{"nocolon", "id:", ":key", "ops:short"}
	for _, raw := range tests {
		if _, err := parseAdminAPIKeys(raw); err == nil {
			t.Errorf("parseAdminAPIKeys(%q) = nil error, want error", raw)
		}
	}
}

func TestLoad_AlertEmailRequiresRecipients(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("ALERT_EMAIL_ENABLED", "true")
	os.Setenv("ALERT_FROM_ADDRESS", "alerts@example.org")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error for missing ALERT_RECIPIENTS")
	}
}
