package domain

import (
	"fmt"
	"time"
)

// NotificationKind categorizes a notification for display.
type NotificationKind string

const (
	NotificationInfo    NotificationKind = "info"
	NotificationSuccess NotificationKind = "success"
	NotificationWarning NotificationKind = "warning"
	NotificationMeeting NotificationKind = "meeting"
	NotificationClient  NotificationKind = "client"
)

// ParseNotificationKind returns info for an empty string.
func ParseNotificationKind(s string) (NotificationKind, error) {
	switch k := NotificationKind(s); k {
	case "":
		return NotificationInfo, nil
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationMeeting, NotificationClient:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown notification type %q", ErrValidation, s)
	}
}

// Notification is an alert addressed to exactly one operator.
type Notification struct {
	ID        string           `json:"id"`
	OwnerID   string           `json:"-"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"type"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
	Metadata  map[string]any   `json:"metadata"`
}
