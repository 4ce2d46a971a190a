package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/agentdesk/internal/identity"
)

// Watch connects to the notification stream at baseURL and applies every
// frame to feed, then calls onFrame. It returns nil when ctx is cancelled.
func Watch(ctx context.Context, baseURL, token string, feed *Feed, onFrame func(Frame)) error {
	streamURL, err := StreamURL(baseURL, token)
	if err != nil {
		return err
	}

	ws, _, err := websocket.Dial(ctx, streamURL, nil)
	if err != nil {
		return fmt.Errorf("dial notification stream: %w", err)
	}
	defer func() { _ = ws.CloseNow() }()

	for {
		var frame Frame
		if err := wsjson.Read(ctx, ws, &frame); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				_ = ws.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read notification stream: %w", err)
		}
		feed.Apply(frame)
		if onFrame != nil {
			onFrame(frame)
		}
	}
}

// StreamURL derives the websocket URL for the stream from an HTTP base URL.
func StreamURL(baseURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/api/notifications/stream"
	if token != "" {
		q := u.Query()
		q.Set(identity.TokenQueryParam, token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
