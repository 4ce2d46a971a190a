// Package agent implements the LLM relay: persona prompts, completion,
// transcript persistence and coaching evaluation.
package agent

import (
	"strings"

	"github.com/ashureev/agentdesk/internal/domain"
)

// ChatRequest is the body of POST /ai-agent-chat.
type ChatRequest struct {
	AgentType string        `json:"agent_type"`
	Message   string        `json:"message"`
	ChatID    *string       `json:"chat_id"`
	Context   []domain.Turn `json:"context"`
}

// ChatResponse is the success body of POST /ai-agent-chat.
type ChatResponse struct {
	Content string `json:"content"`
}

// EvaluateRequest is the body of POST /coach-evaluate.
type EvaluateRequest struct {
	Messages []domain.Turn `json:"messages"`
}

// Config holds relay tuning.
type Config struct {
	ChatMaxTokens   int
	ChatTemperature float64
	EvalTemperature float64
}

// DefaultConfig returns the relay defaults.
func DefaultConfig() Config {
	return Config{
		ChatMaxTokens:   500,
		ChatTemperature: 0.7,
		EvalTemperature: 0.3,
	}
}

// sessionID returns the trimmed chat id, or "" when absent.
func (r ChatRequest) sessionID() string {
	if r.ChatID == nil {
		return ""
	}
	return strings.TrimSpace(*r.ChatID)
}
