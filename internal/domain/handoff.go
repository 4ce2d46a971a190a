package domain

import "time"

// HandoffStatus is the state of a handoff request.
type HandoffStatus string

const (
	HandoffStatusPending   HandoffStatus = "pending"
	HandoffStatusCompleted HandoffStatus = "completed"
)

// HandoffRequest proposes moving a chat session to another operator.
// ToOperatorID stays nil until someone accepts.
type HandoffRequest struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"chat_id"`
	FromOperatorID string        `json:"from_operator_id"`
	ToOperatorID   *string       `json:"to_operator_id"`
	Reason         *string       `json:"reason"`
	Status         HandoffStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	CompletedAt    *time.Time    `json:"completed_at"`
	RemindedAt     *time.Time    `json:"-"`
}

// IsPending reports whether the request can still be accepted.
func (h *HandoffRequest) IsPending() bool {
	return h.Status == HandoffStatusPending
}
