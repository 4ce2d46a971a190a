package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/agentdesk/internal/domain"
	"github.com/ashureev/agentdesk/internal/shared"
)

const handoffColumns = `id, session_id, from_operator_id, to_operator_id, reason, status, created_at, completed_at, reminded_at`

func scanHandoff(row rowScanner) (*domain.HandoffRequest, error) {
	var h domain.HandoffRequest
	var toOperator, reason sql.NullString
	var status string
	var createdAt int64
	var completedAt, remindedAt sql.NullInt64

	if err := row.Scan(&h.ID, &h.SessionID, &h.FromOperatorID, &toOperator, &reason,
		&status, &createdAt, &completedAt, &remindedAt); err != nil {
		return nil, err
	}

	h.ToOperatorID = stringPtr(toOperator)
	h.Reason = stringPtr(reason)
	h.Status = domain.HandoffStatus(status)
	h.CreatedAt = fromNanos(createdAt)
	h.CompletedAt = timePtr(completedAt)
	h.RemindedAt = timePtr(remindedAt)
	return &h, nil
}

// RequestHandoff flips the session to pending_handoff and records the request.
func (s *SQLiteStore) RequestHandoff(ctx context.Context, req *domain.HandoffRequest) error {
	return s.inTx(ctx, "request handoff", func(tx *sql.Tx) error {
		var owner, status string
		err := tx.QueryRowContext(ctx, `SELECT agent_owner_id, status FROM chat_sessions WHERE id = ?`, req.SessionID).
			Scan(&owner, &status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("chat session %s: %w", req.SessionID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load chat session: %w", err)
		}
		if owner != req.FromOperatorID {
			return fmt.Errorf("chat session %s: %w", req.SessionID, domain.ErrForbidden)
		}
		if domain.SessionStatus(status) != domain.SessionStatusActive {
			return fmt.Errorf("chat session %s is %s: %w", req.SessionID, status, domain.ErrConflict)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE chat_sessions SET status = ?, updated_at = ?
			WHERE id = ? AND agent_owner_id = ? AND status = ?`,
			string(domain.SessionStatusPendingHandoff), toNanos(req.CreatedAt),
			req.SessionID, req.FromOperatorID, string(domain.SessionStatusActive))
		if err != nil {
			return fmt.Errorf("mark session pending handoff: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		} else if n == 0 {
			return fmt.Errorf("chat session %s changed concurrently: %w", req.SessionID, domain.ErrConflict)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO handoff_requests (id, session_id, from_operator_id, to_operator_id, reason, status, created_at)
			VALUES (?, ?, ?, NULL, ?, ?, ?)`,
			req.ID, req.SessionID, req.FromOperatorID, nullableString(req.Reason),
			string(domain.HandoffStatusPending), toNanos(req.CreatedAt))
		if shared.IsSQLiteUniqueError(err) {
			return fmt.Errorf("chat session %s already has a pending handoff: %w", req.SessionID, domain.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("insert handoff request: %w", err)
		}

		req.Status = domain.HandoffStatusPending
		req.ToOperatorID = nil
		return nil
	})
}

// AcceptHandoff completes a pending request and reassigns its session.
// The pending -> completed update is the compare-and-swap that decides a
// race between two accepting operators.
func (s *SQLiteStore) AcceptHandoff(ctx context.Context, sessionID, requestID, operatorID string, at time.Time) (*domain.HandoffRequest, error) {
	var accepted *domain.HandoffRequest
	err := s.inTx(ctx, "accept handoff", func(tx *sql.Tx) error {
		h, err := scanHandoff(tx.QueryRowContext(ctx,
			`SELECT `+handoffColumns+` FROM handoff_requests WHERE id = ?`, requestID))
		if errors.Is(err, sql.ErrNoRows) || (err == nil && h.SessionID != sessionID) {
			return fmt.Errorf("handoff request %s: %w", requestID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load handoff request: %w", err)
		}
		if !h.IsPending() {
			return fmt.Errorf("handoff request %s is %s: %w", requestID, h.Status, domain.ErrConflict)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE handoff_requests SET status = ?, to_operator_id = ?, completed_at = ?
			WHERE id = ? AND status = ?`,
			string(domain.HandoffStatusCompleted), operatorID, toNanos(at),
			requestID, string(domain.HandoffStatusPending))
		if err != nil {
			return fmt.Errorf("complete handoff request: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		} else if n == 0 {
			return fmt.Errorf("handoff request %s already completed: %w", requestID, domain.ErrConflict)
		}

		result, err = tx.ExecContext(ctx, `
			UPDATE chat_sessions SET agent_owner_id = ?, status = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			operatorID, string(domain.SessionStatusActive), toNanos(at),
			sessionID, string(domain.SessionStatusPendingHandoff))
		if err != nil {
			return fmt.Errorf("reassign chat session: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		} else if n == 0 {
			return fmt.Errorf("chat session %s is not pending handoff: %w", sessionID, domain.ErrConflict)
		}

		h.Status = domain.HandoffStatusCompleted
		to := operatorID
		h.ToOperatorID = &to
		completed := at
		h.CompletedAt = &completed
		accepted = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// GetHandoff retrieves a handoff request by ID.
func (s *SQLiteStore) GetHandoff(ctx context.Context, id string) (*domain.HandoffRequest, error) {
	h, err := scanHandoff(s.db.QueryRowContext(ctx, `SELECT `+handoffColumns+` FROM handoff_requests WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("handoff request %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan handoff request: %w", err)
	}
	return h, nil
}

// ListPendingHandoffs returns open requests that involve operatorID.
func (s *SQLiteStore) ListPendingHandoffs(ctx context.Context, operatorID string) ([]*domain.HandoffRequest, error) {
	query := `SELECT ` + handoffColumns + ` FROM handoff_requests
		WHERE status = ? AND (from_operator_id = ? OR to_operator_id = ?)
		ORDER BY created_at DESC`
	return s.queryHandoffs(ctx, query, string(domain.HandoffStatusPending), operatorID, operatorID)
}

// ListStaleHandoffs returns unreminded pending requests created before cutoff.
func (s *SQLiteStore) ListStaleHandoffs(ctx context.Context, cutoff time.Time) ([]*domain.HandoffRequest, error) {
	query := `SELECT ` + handoffColumns + ` FROM handoff_requests
		WHERE status = ? AND created_at < ? AND reminded_at IS NULL
		ORDER BY created_at ASC`
	return s.queryHandoffs(ctx, query, string(domain.HandoffStatusPending), toNanos(cutoff))
}

// MarkHandoffReminded records that a reminder was sent for a request.
func (s *SQLiteStore) MarkHandoffReminded(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE handoff_requests SET reminded_at = ? WHERE id = ?`, toNanos(at), id)
	if err != nil {
		return fmt.Errorf("mark handoff reminded: %w", err)
	}
	return requireAffected(result, "handoff request "+id)
}

func (s *SQLiteStore) queryHandoffs(ctx context.Context, query string, args ...any) ([]*domain.HandoffRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query handoff requests: %w", err)
	}
	defer closeRows(rows, "handoff requests")

	var out []*domain.HandoffRequest
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, fmt.Errorf("scan handoff request: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate handoff requests: %w", err)
	}
	return out, nil
}
