package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ashureev/agentdesk/internal/domain"
)

// AppendTurnPair writes a user turn and its assistant reply in one transaction.
func (s *SQLiteStore) AppendTurnPair(ctx context.Context, user, assistant *domain.Message) error {
	if user.SessionID == "" || user.SessionID != assistant.SessionID {
		return fmt.Errorf("%w: turn pair must target one session", domain.ErrValidation)
	}
	if user.Role != domain.RoleUser || assistant.Role != domain.RoleAssistant {
		return fmt.Errorf("%w: turn pair must be user then assistant", domain.ErrValidation)
	}
	if assistant.CreatedAt.Before(user.CreatedAt) {
		assistant.CreatedAt = user.CreatedAt
	}

	return s.inTx(ctx, "append turn pair", func(tx *sql.Tx) error {
		query := `INSERT INTO messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`
		for _, m := range []*domain.Message{user, assistant} {
			if _, err := tx.ExecContext(ctx, query, m.ID, m.SessionID, string(m.Role), m.Content, toNanos(m.CreatedAt)); err != nil {
				return fmt.Errorf("insert %s message: %w", m.Role, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = ? WHERE id = ?`,
			toNanos(assistant.CreatedAt), user.SessionID); err != nil {
			return fmt.Errorf("touch chat session: %w", err)
		}
		return nil
	})
}

// ListMessages returns a session's message log, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	query := `
		SELECT id, session_id, role, content, created_at
		FROM messages WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer closeRows(rows, "messages")

	var msgs []*domain.Message
	for rows.Next() {
		var m domain.Message
		var role string
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = domain.Role(role)
		m.CreatedAt = fromNanos(createdAt)
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}
