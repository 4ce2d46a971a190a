// Package handoff moves chat sessions between operators: one operator
// requests a handoff and another accepts it.
package handoff

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ashureev/agentdesk/internal/domain"
)

// DefaultReasonMaxLen caps a handoff reason in runes.
const DefaultReasonMaxLen = 500

// Store is the slice of the repository the coordinator needs.
type Store interface {
	GetOperator(ctx context.Context, id string) (*domain.Operator, error)
	GetSession(ctx context.Context, id string) (*domain.ChatSession, error)
	ListAvailableSessions(ctx context.Context, excludeOperatorID string) ([]*domain.AvailableSession, error)
	ListMessages(ctx context.Context, sessionID string) ([]*domain.Message, error)
	RequestHandoff(ctx context.Context, req *domain.HandoffRequest) error
	AcceptHandoff(ctx context.Context, sessionID, requestID, operatorID string, at time.Time) (*domain.HandoffRequest, error)
	GetHandoff(ctx context.Context, id string) (*domain.HandoffRequest, error)
	ListPendingHandoffs(ctx context.Context, operatorID string) ([]*domain.HandoffRequest, error)
}

// Notifier delivers best-effort notifications to an operator.
type Notifier interface {
	Notify(ctx context.Context, ownerID, title, message string, kind domain.NotificationKind, metadata map[string]any)
}

// Coordinator implements the handoff workflow.
type Coordinator struct {
	store        Store
	notifier     Notifier
	reasonMaxLen int
	now          func() time.Time
}

// NewCoordinator creates a coordinator. notifier may be nil.
func NewCoordinator(store Store, notifier Notifier, reasonMaxLen int) *Coordinator {
	if reasonMaxLen <= 0 {
		reasonMaxLen = DefaultReasonMaxLen
	}
	return &Coordinator{
		store:        store,
		notifier:     notifier,
		reasonMaxLen: reasonMaxLen,
		now:          time.Now,
	}
}

// RequestHandoff offers callerID's session to other operators.
func (c *Coordinator) RequestHandoff(ctx context.Context, callerID, sessionID, reason string) (*domain.HandoffRequest, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: chat id is required", domain.ErrValidation)
	}

	var reasonPtr *string
	if r := strings.TrimSpace(reason); r != "" {
		if utf8.RuneCountInString(r) > c.reasonMaxLen {
			return nil, fmt.Errorf("%w: reason exceeds %d characters", domain.ErrValidation, c.reasonMaxLen)
		}
		reasonPtr = &r
	}

	req := &domain.HandoffRequest{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		FromOperatorID: callerID,
		Reason:         reasonPtr,
		Status:         domain.HandoffStatusPending,
		CreatedAt:      c.now(),
	}
	if err := c.store.RequestHandoff(ctx, req); err != nil {
		return nil, err
	}

	slog.Info("Handoff requested", "operator_id", callerID, "session_id", sessionID, "request_id", req.ID)
	return req, nil
}

// ListAvailable returns sessions other operators have put up for handoff.
func (c *Coordinator) ListAvailable(ctx context.Context, callerID string) ([]*domain.AvailableSession, error) {
	return c.store.ListAvailableSessions(ctx, callerID)
}

// ListPending returns open requests the caller sent or received.
func (c *Coordinator) ListPending(ctx context.Context, callerID string) ([]*domain.HandoffRequest, error) {
	return c.store.ListPendingHandoffs(ctx, callerID)
}

// AcceptHandoff makes callerID the operator of record for the session. Of
// two concurrent accepts only the first succeeds; the other gets
// domain.ErrConflict.
func (c *Coordinator) AcceptHandoff(ctx context.Context, callerID, sessionID, requestID string) (*domain.HandoffRequest, error) {
	req, err := c.store.GetHandoff(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.SessionID != sessionID {
		return nil, fmt.Errorf("handoff request %s: %w", requestID, domain.ErrNotFound)
	}
	if req.FromOperatorID == callerID {
		return nil, fmt.Errorf("%w: cannot accept your own handoff request", domain.ErrValidation)
	}

	accepted, err := c.store.AcceptHandoff(ctx, sessionID, requestID, callerID, c.now())
	if err != nil {
		return nil, err
	}
	slog.Info("Handoff accepted", "operator_id", callerID, "session_id", sessionID, "request_id", requestID,
		"from_operator_id", accepted.FromOperatorID)

	if c.notifier != nil {
		c.notifier.Notify(ctx, accepted.FromOperatorID, "Handoff accepted",
			fmt.Sprintf("%s accepted your handoff request.", c.operatorName(ctx, callerID)),
			domain.NotificationSuccess,
			map[string]any{"chat_id": sessionID, "request_id": requestID, "to_operator_id": callerID},
		)
	}
	return accepted, nil
}

// History returns the session's messages oldest first. The operator of
// record may always read it; anyone may while it waits for a handoff.
func (c *Coordinator) History(ctx context.Context, callerID, sessionID string) ([]*domain.Message, error) {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsOwnedBy(callerID) && sess.Status != domain.SessionStatusPendingHandoff {
		return nil, fmt.Errorf("chat session %s: %w", sessionID, domain.ErrForbidden)
	}
	return c.store.ListMessages(ctx, sessionID)
}

func (c *Coordinator) operatorName(ctx context.Context, id string) string {
	op, err := c.store.GetOperator(ctx, id)
	if err != nil || op.Name == "" {
		return "Another operator"
	}
	return op.Name
}
