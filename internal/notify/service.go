package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/agentdesk/internal/domain"
)

// Page size for List.
const (
	DefaultLimit = 50
	MaxLimit     = 50
)

const notifyTimeout = 5 * time.Second

// Store is the notification slice of the repository.
type Store interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, ownerID string, limit int) ([]*domain.Notification, error)
	CountUnreadNotifications(ctx context.Context, ownerID string) (int, error)
	MarkNotificationRead(ctx context.Context, ownerID, id string) error
	MarkAllNotificationsRead(ctx context.Context, ownerID string) (int64, error)
	DeleteNotification(ctx context.Context, ownerID, id string) error
	PruneNotifications(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service implements the notification store operations and publishes new
// rows to the hub.
type Service struct {
	store Store
	hub   *Hub
	now   func() time.Time
}

// NewService creates a notification service.
func NewService(store Store, hub *Hub) *Service {
	return &Service{store: store, hub: hub, now: time.Now}
}

// Hub returns the hub new notifications are published to.
func (s *Service) Hub() *Hub { return s.hub }

// List returns the owner's newest notifications. A limit outside 1..MaxLimit
// is clamped.
func (s *Service) List(ctx context.Context, ownerID string, limit int) ([]*domain.Notification, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return s.store.ListNotifications(ctx, ownerID, limit)
}

// Create persists a notification for ownerID and publishes it.
func (s *Service) Create(ctx context.Context, ownerID, title, message string, kind domain.NotificationKind, metadata map[string]any) (*domain.Notification, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if kind == "" {
		kind = domain.NotificationInfo
	}
	if _, err := domain.ParseNotificationKind(string(kind)); err != nil {
		return nil, err
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	n := &domain.Notification{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		Message:   message,
		Kind:      kind,
		CreatedAt: s.now(),
		Metadata:  metadata,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	if s.hub != nil {
		s.hub.Publish(n)
	}
	return n, nil
}

// Notify creates a notification and only logs failures. It is detached from
// ctx cancellation so a finished request does not lose its side effect.
func (s *Service) Notify(ctx context.Context, ownerID, title, message string, kind domain.NotificationKind, metadata map[string]any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if _, err := s.Create(ctx, ownerID, title, message, kind, metadata); err != nil {
		slog.Warn("Notification not delivered", "operator_id", ownerID, "title", title, "error", err)
	}
}

// MarkRead marks one notification as read.
func (s *Service) MarkRead(ctx context.Context, ownerID, id string) error {
	return s.store.MarkNotificationRead(ctx, ownerID, id)
}

// MarkAllRead marks every unread notification of the owner as read.
func (s *Service) MarkAllRead(ctx context.Context, ownerID string) (int64, error) {
	return s.store.MarkAllNotificationsRead(ctx, ownerID)
}

// Delete removes a notification.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	return s.store.DeleteNotification(ctx, ownerID, id)
}

// UnreadCount counts unread notifications.
func (s *Service) UnreadCount(ctx context.Context, ownerID string) (int, error) {
	return s.store.CountUnreadNotifications(ctx, ownerID)
}

// Prune deletes read notifications older than retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.PruneNotifications(ctx, s.now().Add(-retention))
}
