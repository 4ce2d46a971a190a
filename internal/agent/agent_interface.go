package agent

import (
	"context"

	"github.com/ashureev/agentdesk/internal/domain"
	"github.com/ashureev/agentdesk/internal/store"
)

// TranscriptStore is the slice of the repository the relay needs.
type TranscriptStore interface {
	GetSession(ctx context.Context, id string) (*domain.ChatSession, error)
	AppendTurnPair(ctx context.Context, user, assistant *domain.Message) error
}

// Ensure the SQLite store satisfies TranscriptStore.
var _ TranscriptStore = (store.Repository)(nil)
