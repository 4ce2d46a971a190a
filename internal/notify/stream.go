package notify

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/agentdesk/internal/domain"
	"github.com/ashureev/agentdesk/internal/identity"
)

// Frame types on the notification stream.
const (
	FrameSnapshot     = "snapshot"
	FrameNotification = "notification"
	FramePing         = "ping"
)

const (
	defaultKeepalive = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// Frame is one JSON message on the notification stream.
type Frame struct {
	Type          string                 `json:"type"`
	Notification  *domain.Notification   `json:"notification,omitempty"`
	Notifications []*domain.Notification `json:"notifications,omitempty"`
}

// StreamHandler upgrades to a websocket and pushes the caller's notifications.
type StreamHandler struct {
	svc            *Service
	originPatterns []string
	keepalive      time.Duration
}

// NewStreamHandler creates a stream handler. originPatterns follow
// websocket.AcceptOptions; empty means same-origin only.
func NewStreamHandler(svc *Service, originPatterns []string, keepalive time.Duration) *StreamHandler {
	if keepalive <= 0 {
		keepalive = defaultKeepalive
	}
	return &StreamHandler{svc: svc, originPatterns: originPatterns, keepalive: keepalive}
}

// ServeHTTP implements http.Handler for GET /api/notifications/stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	operatorID := identity.OperatorIDFromContext(r.Context())

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Warn("Failed to accept notification stream", "operator_id", operatorID, "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "operator_id", operatorID, "error", closeErr)
		}
	}()

	// Subscribe before the snapshot so nothing inserted in between is missed.
	updates, unsubscribe := h.svc.Hub().Subscribe(operatorID)
	defer unsubscribe()

	// Clients never send anything; CloseRead handles control frames and
	// cancels ctx when the peer goes away.
	ctx := ws.CloseRead(r.Context())

	snapshot, err := h.svc.List(ctx, operatorID, MaxLimit)
	if err != nil {
		slog.Error("Failed to load notification snapshot", "operator_id", operatorID, "error", err)
		_ = ws.Close(websocket.StatusInternalError, "snapshot failed")
		return
	}
	if snapshot == nil {
		snapshot = []*domain.Notification{}
	}
	if err := h.write(ctx, ws, Frame{Type: FrameSnapshot, Notifications: snapshot}); err != nil {
		return
	}
	slog.Info("Notification stream opened", "operator_id", operatorID, "snapshot", len(snapshot))

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Notification stream closed", "operator_id", operatorID)
			return
		case n, ok := <-updates:
			if !ok {
				return
			}
			if err := h.write(ctx, ws, Frame{Type: FrameNotification, Notification: n}); err != nil {
				return
			}
		case <-ticker.C:
			if err := h.write(ctx, ws, Frame{Type: FramePing}); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) write(ctx context.Context, ws *websocket.Conn, f Frame) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, ws, f); err != nil {
		slog.Debug("Notification stream write failed", "type", f.Type, "error", err)
		return err
	}
	return nil
}
