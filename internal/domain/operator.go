// Package domain contains core domain types for the agentdesk service.
package domain

import (
	"time"
)

// Operator is a human sales representative who owns chat sessions.
type Operator struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TokenHash string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Client is a CRM company record a chat session may be scoped to.
type Client struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// UnknownClientName is shown when a session has no resolvable client.
const UnknownClientName = "Unknown Client"
