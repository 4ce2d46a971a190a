package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ashureev/agentdesk/internal/domain"
)

const sessionColumns = `s.id, s.owner_id, s.agent_owner_id, s.agent_type, s.client_id, s.status, s.created_at, s.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner, extra ...any) (*domain.ChatSession, error) {
	var sess domain.ChatSession
	var clientID sql.NullString
	var agentType, status string
	var createdAt, updatedAt int64

	dest := append([]any{
		&sess.ID, &sess.OwnerID, &sess.AgentOwnerID, &agentType, &clientID,
		&status, &createdAt, &updatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	sess.AgentType = domain.AgentType(agentType)
	sess.Status = domain.SessionStatus(status)
	sess.ClientID = stringPtr(clientID)
	sess.CreatedAt = fromNanos(createdAt)
	sess.UpdatedAt = fromNanos(updatedAt)
	return &sess, nil
}

// CreateSession inserts a chat session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.ChatSession) error {
	query := `
	INSERT INTO chat_sessions (id, owner_id, agent_owner_id, agent_type, client_id, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.OwnerID, session.AgentOwnerID, string(session.AgentType),
		nullableString(session.ClientID), string(session.Status),
		toNanos(session.CreatedAt), toNanos(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert chat session: %w", err)
	}
	return nil
}

// GetSession retrieves a chat session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions s WHERE s.id = ?`
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chat session %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat session: %w", err)
	}
	return sess, nil
}

// ListSessionsByAgentOwner returns sessions whose operator of record is operatorID.
func (s *SQLiteStore) ListSessionsByAgentOwner(ctx context.Context, operatorID string) ([]*domain.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions s
		WHERE s.agent_owner_id = ?
		ORDER BY s.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, operatorID)
	if err != nil {
		return nil, fmt.Errorf("query chat sessions: %w", err)
	}
	defer closeRows(rows, "chat sessions")

	var sessions []*domain.ChatSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat sessions: %w", err)
	}
	return sessions, nil
}

// ListAvailableSessions returns pending_handoff sessions not owned by excludeOperatorID.
func (s *SQLiteStore) ListAvailableSessions(ctx context.Context, excludeOperatorID string) ([]*domain.AvailableSession, error) {
	query := `SELECT ` + sessionColumns + `,
		       COALESCE(c.name, ''),
		       (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
		FROM chat_sessions s
		LEFT JOIN clients c ON c.id = s.client_id
		WHERE s.status = ? AND s.agent_owner_id <> ?
		ORDER BY s.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, string(domain.SessionStatusPendingHandoff), excludeOperatorID)
	if err != nil {
		return nil, fmt.Errorf("query available sessions: %w", err)
	}
	defer closeRows(rows, "available sessions")

	var out []*domain.AvailableSession
	for rows.Next() {
		var clientName string
		var count int
		sess, err := scanSession(rows, &clientName, &count)
		if err != nil {
			return nil, fmt.Errorf("scan available session: %w", err)
		}
		if clientName == "" {
			clientName = domain.UnknownClientName
		}
		out = append(out, &domain.AvailableSession{ChatSession: *sess, ClientName: clientName, MessageCount: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate available sessions: %w", err)
	}
	return out, nil
}
