package notify

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ashureev/agentdesk/internal/domain"
)

// Doer performs an authenticated API call; chat.Client implements it.
type Doer interface {
	Do(ctx context.Context, method, path string, in, out any) error
}

// RemoteNotifier creates notifications for the calling operator through the
// HTTP API. Failures are logged only.
type RemoteNotifier struct {
	api Doer
}

// NewRemoteNotifier creates a RemoteNotifier.
func NewRemoteNotifier(api Doer) *RemoteNotifier {
	return &RemoteNotifier{api: api}
}

// Notify posts a notification addressed to the caller.
func (n *RemoteNotifier) Notify(ctx context.Context, title, message string, kind domain.NotificationKind, metadata map[string]any) {
	body := CreateRequest{Title: title, Message: message, Kind: string(kind), Metadata: metadata}
	if err := n.api.Do(ctx, http.MethodPost, "/api/notifications", body, nil); err != nil {
		slog.Warn("Notification not delivered", "title", title, "error", err)
	}
}
