// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/agentdesk/internal/domain"
)

// Repository defines the interface for persisting operators, chat sessions,
// their message log, handoff requests and notifications.
//
// Lookups of a single row return an error wrapping domain.ErrNotFound when
// the row does not exist.
type Repository interface {
	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// CreateOperator inserts a new operator.
	CreateOperator(ctx context.Context, op *domain.Operator) error

	// GetOperator retrieves an operator by ID.
	GetOperator(ctx context.Context, id string) (*domain.Operator, error)

	// GetOperatorByTokenHash retrieves the operator owning an API token.
	GetOperatorByTokenHash(ctx context.Context, tokenHash string) (*domain.Operator, error)

	// CreateClient inserts a CRM client record.
	CreateClient(ctx context.Context, client *domain.Client) error

	// GetClient retrieves a client by ID.
	GetClient(ctx context.Context, id string) (*domain.Client, error)

	// CreateSession inserts a chat session.
	CreateSession(ctx context.Context, session *domain.ChatSession) error

	// GetSession retrieves a chat session by ID.
	GetSession(ctx context.Context, id string) (*domain.ChatSession, error)

	// ListSessionsByAgentOwner returns sessions whose operator of record is
	// operatorID, most recently updated first.
	ListSessionsByAgentOwner(ctx context.Context, operatorID string) ([]*domain.ChatSession, error)

	// ListAvailableSessions returns sessions waiting for a handoff that are
	// not currently owned by excludeOperatorID.
	ListAvailableSessions(ctx context.Context, excludeOperatorID string) ([]*domain.AvailableSession, error)

	// AppendTurnPair writes a user turn and its assistant reply in a single
	// transaction. Either both rows are written or neither is.
	AppendTurnPair(ctx context.Context, user, assistant *domain.Message) error

	// ListMessages returns a session's message log, oldest first.
	ListMessages(ctx context.Context, sessionID string) ([]*domain.Message, error)

	// RequestHandoff moves the session to pending_handoff and inserts the
	// pending request atomically. It fails with ErrForbidden when the
	// requester is not the operator of record and ErrConflict when the
	// session is not active or already has a pending request.
	RequestHandoff(ctx context.Context, req *domain.HandoffRequest) error

	// AcceptHandoff completes a pending request and reassigns the session to
	// operatorID atomically. Only the first caller for a request succeeds;
	// later callers get ErrConflict.
	AcceptHandoff(ctx context.Context, sessionID, requestID, operatorID string, at time.Time) (*domain.HandoffRequest, error)

	// GetHandoff retrieves a handoff request by ID.
	GetHandoff(ctx context.Context, id string) (*domain.HandoffRequest, error)

	// ListPendingHandoffs returns open requests where operatorID is the
	// from- or to-operator, newest first.
	ListPendingHandoffs(ctx context.Context, operatorID string) ([]*domain.HandoffRequest, error)

	// ListStaleHandoffs returns pending requests created before cutoff that
	// have not been reminded yet.
	ListStaleHandoffs(ctx context.Context, cutoff time.Time) ([]*domain.HandoffRequest, error)

	// MarkHandoffReminded records that a reminder was sent for a request.
	MarkHandoffReminded(ctx context.Context, id string, at time.Time) error

	// CreateNotification inserts a notification.
	CreateNotification(ctx context.Context, n *domain.Notification) error

	// ListNotifications returns the newest notifications for an owner.
	ListNotifications(ctx context.Context, ownerID string, limit int) ([]*domain.Notification, error)

	// CountUnreadNotifications counts an owner's unread notifications.
	CountUnreadNotifications(ctx context.Context, ownerID string) (int, error)

	// MarkNotificationRead marks one of the owner's notifications as read.
	MarkNotificationRead(ctx context.Context, ownerID, id string) error

	// MarkAllNotificationsRead marks every unread notification of the owner as read.
	MarkAllNotificationsRead(ctx context.Context, ownerID string) (int64, error)

	// DeleteNotification removes one of the owner's notifications.
	DeleteNotification(ctx context.Context, ownerID, id string) error

	// PruneNotifications deletes read notifications created before cutoff.
	PruneNotifications(ctx context.Context, cutoff time.Time) (int64, error)
}
