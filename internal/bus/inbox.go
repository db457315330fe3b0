package bus

import (
	"context"
	"sync"
	"time"

	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
)

// Inbox is an unbounded FIFO queue of actions owned by one worker.
type Inbox struct {
	// name identifies the owning worker in logs.
	name string
	// queue holds actions not yet received.
	queue []domain.Action
	// signal is poked after every Put so a waiting receiver wakes up.
	signal chan struct{}
	// closed inboxes drop everything.
	closed bool
	// mu protects queue and closed.
	mu sync.Mutex
}

// NewInbox creates an empty inbox.
func NewInbox(name string) *Inbox {
	return &Inbox{
		name:   name,
		signal: make(chan struct{}, 1),
	}
}

// Name returns the owning worker name.
func (i *Inbox) Name() string {
	return i.name
}

// Put appends an action without blocking. It reports false when the inbox is closed.
func (i *Inbox) Put(action domain.Action) bool {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()

		return false
	}

	i.queue = append(i.queue, action)
	i.mu.Unlock()

	select {
	case i.signal <- struct{}{}:
	default:
	}

	return true
}

// Receive waits up to timeout for the next action.
// It returns false on timeout or when ctx is done.
func (i *Inbox) Receive(ctx context.Context, timeout time.Duration) (domain.Action, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if action, ok := i.pop(); ok {
			return action, true
		}

		select {
		case <-i.signal:
		case <-timer.C:
			return "", false
		case <-ctx.Done():
			return "", false
		}
	}
}

// Next waits for the next action until ctx is done.
func (i *Inbox) Next(ctx context.Context) (domain.Action, bool) {
	for {
		if action, ok := i.pop(); ok {
			return action, true
		}

		select {
		case <-i.signal:
		case <-ctx.Done():
			return "", false
		}
	}
}

// TryReceive returns the next queued action without waiting.
func (i *Inbox) TryReceive() (domain.Action, bool) {
	return i.pop()
}

// Ready is poked after Puts. Workers that wait on other channels too select
// on it and then drain the inbox with TryReceive.
func (i *Inbox) Ready() <-chan struct{} {
	return i.signal
}

// Len returns the number of queued actions.
func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	return len(i.queue)
}

// Clear drops every queued action.
func (i *Inbox) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.queue = nil
}

// Close makes further Puts no-ops. Queued actions stay receivable.
func (i *Inbox) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.closed = true
}

func (i *Inbox) pop() (domain.Action, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.queue) == 0 {
		return "", false
	}

	action := i.queue[0]
	i.queue[0] = ""
	i.queue = i.queue[1:]

	return action, true
}
