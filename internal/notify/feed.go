package notify

import (
	"sync"

	"github.com/ashureev/agentdesk/internal/domain"
)

// Feed is a client-side view of an operator's notifications, newest first.
// A notification can arrive both in the snapshot and as a live push; Feed
// keeps one copy per id.
type Feed struct {
	mu    sync.Mutex
	items []*domain.Notification
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Load replaces the feed contents with a snapshot. Items not in the
// snapshot are dropped, so a reconnect never resurrects deleted items.
func (f *Feed) Load(snapshot []*domain.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seen := make(map[string]struct{}, len(snapshot))
	items := make([]*domain.Notification, 0, len(snapshot))
	for _, n := range snapshot {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		items = append(items, n)
	}
	f.items = items
}

// Push prepends n. It reports false when n is already in the feed.
func (f *Feed) Push(n *domain.Notification) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.indexOf(n.ID) >= 0 {
		return false
	}
	f.items = append([]*domain.Notification{n}, f.items...)
	return true
}

// Apply folds a stream frame into the feed.
func (f *Feed) Apply(frame Frame) {
	switch frame.Type {
	case FrameSnapshot:
		f.Load(frame.Notifications)
	case FrameNotification:
		if frame.Notification != nil {
			f.Push(frame.Notification)
		}
	}
}

// MarkRead flags one item as read locally.
func (f *Feed) MarkRead(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.indexOf(id)
	if i < 0 {
		return false
	}
	f.items[i].Read = true
	return true
}

// MarkAllRead flags every item as read locally.
func (f *Feed) MarkAllRead() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.items {
		n.Read = true
	}
}

// Remove drops one item.
func (f *Feed) Remove(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.indexOf(id)
	if i < 0 {
		return false
	}
	f.items = append(f.items[:i], f.items[i+1:]...)
	return true
}

// Items returns a copy of the feed, newest first.
func (f *Feed) Items() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.Notification, len(f.items))
	for i, n := range f.items {
		out[i] = *n
	}
	return out
}

// UnreadCount is derived from the items, never tracked separately.
func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, n := range f.items {
		if !n.Read {
			count++
		}
	}
	return count
}

func (f *Feed) indexOf(id string) int {
	for i, n := range f.items {
		if n.ID == id {
			return i
		}
	}
	return -1
}
