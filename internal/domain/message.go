package domain

import (
	"fmt"
	"time"
)

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role a transcript may contain.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one persisted turn of a chat session. Messages are immutable
// once written and ordered by CreatedAt within a session.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"chat_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Turn is the wire shape of a message in relay payloads.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ValidateTurns rejects history entries with an unknown role.
func ValidateTurns(turns []Turn) error {
	for i, t := range turns {
		if !t.Role.Valid() {
			return fmt.Errorf("%w: turn %d has role %q", ErrValidation, i, t.Role)
		}
	}
	return nil
}

// MaxContextTurns is how many prior turns accompany a relay call. Older
// turns are dropped.
const MaxContextTurns = 10

// ContextWindow returns the last limit turns of history. The result shares
// no backing array with turns.
func ContextWindow(turns []Turn, limit int) []Turn {
	if limit <= 0 {
		return nil
	}
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
