package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FRONTEND_URL", "")
	t.Setenv("LLM_MODEL", "google/gemini-3-flash-preview")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.ChatMaxTokens != 500 {
		t.Errorf("ChatMaxTokens = %d, want 500", cfg.LLM.ChatMaxTokens)
	}
	if cfg.LLM.ChatTemperature != 0.7 || cfg.LLM.EvalTemperature != 0.3 {
		t.Errorf("temperatures = %v/%v, want 0.7/0.3", cfg.LLM.ChatTemperature, cfg.LLM.EvalTemperature)
	}
	if cfg.Handoff.ReasonMaxLen != 500 {
		t.Errorf("ReasonMaxLen = %d, want 500", cfg.Handoff.ReasonMaxLen)
	}
	if cfg.Notifications.Retention != 30*24*time.Hour {
		t.Errorf("Retention = %v", cfg.Notifications.Retention)
	}
	if !cfg.IsDevelopment() {
		t.Error("empty FRONTEND_URL should be development")
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		t.Error("expected default CORS origins")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FRONTEND_URL", "https://crm.example.com")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("LLM_CHAT_TEMPERATURE", "0.2")
	t.Setenv("HANDOFF_REMINDER_AFTER", "2h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.CORSAllowedOrigins; len(got) != 2 || got[1] != "https://b.example.com" {
		t.Errorf("CORSAllowedOrigins = %v", got)
	}
	if cfg.RateLimit.WindowDuration != 30*time.Second {
		t.Errorf("WindowDuration = %v", cfg.RateLimit.WindowDuration)
	}
	if cfg.LLM.ChatTemperature != 0.2 {
		t.Errorf("ChatTemperature = %v", cfg.LLM.ChatTemperature)
	}
	if cfg.Handoff.ReminderAfter != 2*time.Hour {
		t.Errorf("ReminderAfter = %v", cfg.Handoff.ReminderAfter)
	}
	if cfg.IsDevelopment() {
		t.Error("public FRONTEND_URL should not be development")
	}
}

func TestLoadRejectsBadSchedule(t *testing.T) {
	t.Setenv("NOTIFICATION_PRUNE_SCHEDULE", "every day")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid cron schedule to fail validation")
	}
}

func TestLoadRejectsZeroRateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_REQUESTS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected RATE_LIMIT_REQUESTS=0 to fail validation")
	}
}
