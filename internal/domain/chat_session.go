package domain

import (
	"fmt"
	"strings"
	"time"
)

// AgentType selects the persona a chat session talks to.
type AgentType string

const (
	AgentTypeCoordinator AgentType = "coordinator"
	AgentTypeMarketPulse AgentType = "marketpulse"
	AgentTypeCoach       AgentType = "coach"
)

// ParseAgentType normalizes a wire tag. "market-intel" is accepted as an
// alias of marketpulse.
func ParseAgentType(s string) (AgentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "coordinator":
		return AgentTypeCoordinator, nil
	case "marketpulse", "market-intel":
		return AgentTypeMarketPulse, nil
	case "coach":
		return AgentTypeCoach, nil
	default:
		return "", fmt.Errorf("%w: unknown agent type %q", ErrValidation, s)
	}
}

// SessionStatus is the lifecycle state of a chat session.
type SessionStatus string

const (
	SessionStatusActive         SessionStatus = "active"
	SessionStatusPendingHandoff SessionStatus = "pending_handoff"
)

// ChatSession is one conversation between an operator and an agent persona.
// OwnerID is the operator who opened it; AgentOwnerID is the current
// operator of record and changes only through an accepted handoff.
type ChatSession struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"owner_id"`
	AgentOwnerID string        `json:"agent_owner_id"`
	AgentType    AgentType     `json:"agent_type"`
	ClientID     *string       `json:"client_id"`
	Status       SessionStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsOwnedBy reports whether operatorID is the current operator of record.
func (s *ChatSession) IsOwnedBy(operatorID string) bool {
	return operatorID != "" && s.AgentOwnerID == operatorID
}

// AvailableSession is a session waiting for another operator to take it
// over, joined with context for the picker.
type AvailableSession struct {
	ChatSession
	ClientName   string `json:"client_name"`
	MessageCount int    `json:"message_count"`
}
