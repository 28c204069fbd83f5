package server

import (
	"sync"

	"github.com/google/uuid"
)

// Notifier fans out change notifications to subscribers. A notification
// carries no payload; subscribers re-fetch the index. Pending notifications
// to a slow subscriber coalesce into one.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]chan struct{}
}

// NewNotifier creates a notifier with no subscribers.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]chan struct{})}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel.
func (n *Notifier) Subscribe() (id string, ch <-chan struct{}, cancel func()) {
	id = uuid.NewString()
	c := make(chan struct{}, 1)

	n.mu.Lock()
	n.subs[id] = c
	n.mu.Unlock()

	var once sync.Once
	return id, c, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(c)
		})
	}
}

// Broadcast sends one notification to every subscriber without blocking.
func (n *Notifier) Broadcast() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.subs {
		select {
		case c <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of subscribers.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
