package memory

import (
	"context"
	"sync"

	"studyhub-contest-service/internal/app"
)

// Notifier records events in memory. It stands in for the redis publisher in
// tests and the no-redis dev mode.
type Notifier struct {
	mu     sync.Mutex
	events []app.Event
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Publish(_ context.Context, event app.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

// Events returns a copy of everything published so far.
func (n *Notifier) Events() []app.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]app.Event(nil), n.events...)
}
