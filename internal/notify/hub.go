// Package notify stores per-operator notifications and pushes new ones to
// connected streams.
package notify

import (
	"log/slog"
	"sync"

	"github.com/ashureev/agentdesk/internal/domain"
)

// subscriberBuffer bounds how far a slow stream may fall behind before
// notifications are dropped for it.
const subscriberBuffer = 16

type subscription struct {
	ch chan *domain.Notification
}

// Hub fans published notifications out to the owner's live subscribers.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[*subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]map[*subscription]struct{}),
	}
}

// Subscribe registers a subscriber for ownerID. The returned function
// unregisters it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(ownerID string) (<-chan *domain.Notification, func()) {
	sub := &subscription{ch: make(chan *domain.Notification, subscriberBuffer)}

	h.mu.Lock()
	if _, exists := h.active[ownerID]; !exists {
		h.active[ownerID] = make(map[*subscription]struct{})
	}
	h.active[ownerID][sub] = struct{}{}
	h.mu.Unlock()
	slog.Debug("Notification stream subscribed", "operator_id", ownerID)

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() { h.unsubscribe(ownerID, sub) })
	}
}

func (h *Hub) unsubscribe(ownerID string, sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.active[ownerID]; ok {
		if _, exists := subs[sub]; exists {
			delete(subs, sub)
			close(sub.ch)
			if len(subs) == 0 {
				delete(h.active, ownerID)
			}
			slog.Debug("Notification stream unsubscribed", "operator_id", ownerID)
		}
	}
}

// Publish delivers n to every subscriber of its owner without blocking.
func (h *Hub) Publish(n *domain.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.active[n.OwnerID] {
		select {
		case sub.ch <- n:
		default:
			slog.Warn("Notification dropped for slow stream", "operator_id", n.OwnerID, "notification_id", n.ID)
		}
	}
}

// Subscribers returns the number of live subscribers for ownerID.
func (h *Hub) Subscribers(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[ownerID])
}
