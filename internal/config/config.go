// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds all application configuration.
type Config struct {
	Port               string
	FrontendURL        string
	DBPath             string
	CORSAllowedOrigins []string
	MaxRequestBodySize int64
	PersonasPath       string
	LLM                LLMConfig
	RateLimit          RateLimitConfig
	Handoff            HandoffConfig
	Notifications      NotificationConfig
	ConversationLog    ConversationLogConfig
}

// LLMConfig points the relay at an OpenAI-compatible gateway.
type LLMConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	Timeout         time.Duration
	ChatMaxTokens   int
	ChatTemperature float64
	EvalTemperature float64
}

// RateLimitConfig bounds relay calls per operator.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// HandoffConfig controls handoff validation and reminders.
type HandoffConfig struct {
	ReasonMaxLen     int
	ReminderAfter    time.Duration
	ReminderSchedule string
}

// NotificationConfig controls retention and the live stream.
type NotificationConfig struct {
	Retention       time.Duration
	PruneSchedule   string
	StreamKeepalive time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	frontendURL := getEnv("FRONTEND_URL", "")
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        frontendURL,
		DBPath:             getEnv("DB_PATH", "./data/agentdesk.db"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", defaultOrigins(frontendURL)),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
		PersonasPath:       getEnv("PERSONAS_PATH", ""),
		LLM: LLMConfig{
			BaseURL:         getEnv("LLM_BASE_URL", "https://ai.gateway.lovable.dev"),
			APIKey:          getEnv("LLM_API_KEY", ""),
			Model:           getEnv("LLM_MODEL", "google/gemini-3-flash-preview"),
			Timeout:         getEnvDuration("LLM_TIMEOUT", 60*time.Second),
			ChatMaxTokens:   getEnvInt("LLM_CHAT_MAX_TOKENS", 500),
			ChatTemperature: getEnvFloat("LLM_CHAT_TEMPERATURE", 0.7),
			EvalTemperature: getEnvFloat("LLM_EVAL_TEMPERATURE", 0.3),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Handoff: HandoffConfig{
			ReasonMaxLen:     getEnvInt("HANDOFF_REASON_MAX_LEN", 500),
			ReminderAfter:    getEnvDuration("HANDOFF_REMINDER_AFTER", 24*time.Hour),
			ReminderSchedule: getEnv("HANDOFF_REMINDER_SCHEDULE", "*/15 * * * *"),
		},
		Notifications: NotificationConfig{
			Retention:       getEnvDuration("NOTIFICATION_RETENTION", 30*24*time.Hour),
			PruneSchedule:   getEnv("NOTIFICATION_PRUNE_SCHEDULE", "0 3 * * *"),
			StreamKeepalive: getEnvDuration("NOTIFICATION_STREAM_KEEPALIVE", 30*time.Second),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
//
//nolint:gocyclo // Flat list of independent field checks.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL cannot be empty")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	if c.LLM.ChatMaxTokens <= 0 {
		return fmt.Errorf("LLM_CHAT_MAX_TOKENS must be > 0")
	}
	if c.LLM.ChatTemperature < 0 || c.LLM.ChatTemperature > 2 {
		return fmt.Errorf("LLM_CHAT_TEMPERATURE must be within [0, 2]")
	}
	if c.LLM.EvalTemperature < 0 || c.LLM.EvalTemperature > 2 {
		return fmt.Errorf("LLM_EVAL_TEMPERATURE must be within [0, 2]")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.Handoff.ReasonMaxLen <= 0 {
		return fmt.Errorf("HANDOFF_REASON_MAX_LEN must be > 0")
	}
	if c.Handoff.ReminderAfter <= 0 {
		return fmt.Errorf("HANDOFF_REMINDER_AFTER must be > 0")
	}
	if _, err := cron.ParseStandard(c.Handoff.ReminderSchedule); err != nil {
		return fmt.Errorf("HANDOFF_REMINDER_SCHEDULE: %w", err)
	}
	if c.Notifications.Retention <= 0 {
		return fmt.Errorf("NOTIFICATION_RETENTION must be > 0")
	}
	if _, err := cron.ParseStandard(c.Notifications.PruneSchedule); err != nil {
		return fmt.Errorf("NOTIFICATION_PRUNE_SCHEDULE: %w", err)
	}
	if c.Notifications.StreamKeepalive <= 0 {
		return fmt.Errorf("NOTIFICATION_STREAM_KEEPALIVE must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func defaultOrigins(frontendURL string) []string {
	if frontendURL == "" {
		return []string{"http://localhost:5173", "http://localhost:3000"}
	}
	return []string{frontendURL}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
