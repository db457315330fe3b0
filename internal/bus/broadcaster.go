package bus

import (
	"sync"

	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
)

// Sender is what producers of actions depend on.
type Sender interface {
	Send(action domain.Action)
}

// Broadcaster copies every action to all registered inboxes.
type Broadcaster struct {
	// inboxes receive every sent action in registration order.
	inboxes []*Inbox
	// mu protects inboxes.
	mu sync.RWMutex
}

// NewBroadcaster creates a broadcaster over the given inboxes.
func NewBroadcaster(inboxes ...*Inbox) *Broadcaster {
	return &Broadcaster{
		inboxes: append([]*Inbox(nil), inboxes...),
	}
}

// Register creates and registers a new inbox for a worker.
func (b *Broadcaster) Register(name string) *Inbox {
	inbox := NewInbox(name)

	b.mu.Lock()
	b.inboxes = append(b.inboxes, inbox)
	b.mu.Unlock()

	return inbox
}

// Send delivers action to every inbox. It never blocks; a closed inbox
// silently drops the action.
func (b *Broadcaster) Send(action domain.Action) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, inbox := range b.inboxes {
		inbox.Put(action)
	}
}

// Inboxes returns the registered inbox names.
func (b *Broadcaster) Inboxes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.inboxes))
	for _, inbox := range b.inboxes {
		names = append(names, inbox.Name())
	}

	return names
}
