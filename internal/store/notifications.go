package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashureev/agentdesk/internal/domain"
)

// CreateNotification inserts a notification.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.Metadata == nil {
		n.Metadata = map[string]any{}
	}
	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("marshal notification metadata: %w", err)
	}

	query := `
	INSERT INTO notifications (id, owner_id, title, message, kind, read, metadata, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		n.ID, n.OwnerID, n.Title, n.Message, string(n.Kind), n.Read, string(metadata), toNanos(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns the newest notifications for an owner.
func (s *SQLiteStore) ListNotifications(ctx context.Context, ownerID string, limit int) ([]*domain.Notification, error) {
	query := `
		SELECT id, owner_id, title, message, kind, read, metadata, created_at
		FROM notifications WHERE owner_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer closeRows(rows, "notifications")

	out := make([]*domain.Notification, 0, limit)
	for rows.Next() {
		var n domain.Notification
		var kind, metadata string
		var createdAt int64
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Message, &kind, &n.Read, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Kind = domain.NotificationKind(kind)
		n.CreatedAt = fromNanos(createdAt)
		if err := json.Unmarshal([]byte(metadata), &n.Metadata); err != nil || n.Metadata == nil {
			n.Metadata = map[string]any{}
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// CountUnreadNotifications counts an owner's unread notifications.
func (s *SQLiteStore) CountUnreadNotifications(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE owner_id = ? AND read = 0`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead marks one of the owner's notifications as read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, ownerID, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireAffected(result, "notification "+id)
}

// MarkAllNotificationsRead marks every unread notification of the owner as read.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, ownerID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE owner_id = ? AND read = 0`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return result.RowsAffected()
}

// DeleteNotification removes one of the owner's notifications.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, ownerID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return requireAffected(result, "notification "+id)
}

// PruneNotifications deletes read notifications created before cutoff.
func (s *SQLiteStore) PruneNotifications(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE read = 1 AND created_at < ?`, toNanos(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	return result.RowsAffected()
}
