// Package notify provides the change notification bus shared by the stores, the sync
// orchestrator and any view that needs to refresh.
//
// Publishers call Publish after a successful write. Subscribers receive events on a
// buffered channel; a subscriber that falls behind loses events rather than blocking
// the writer.
package notify

import (
	"log"
	"os"
	"sync"
	"time"
)

// Kind identifies what happened.
type Kind string

const (
	// KindPersonAdded is published after a local add.
	KindPersonAdded Kind = "person.added"
	// KindPersonUpdated is published after a local update.
	KindPersonUpdated Kind = "person.updated"
	// KindPersonDeleted is published after a local delete.
	KindPersonDeleted Kind = "person.deleted"
	// KindLocalReplaced is published when the whole local collection was replaced
	// (after reconciliation or a remote refresh).
	KindLocalReplaced Kind = "local.replaced"
	// KindSyncComplete is published after a successful reconciliation.
	KindSyncComplete Kind = "sync.complete"
	// KindModeChanged is published when the sync mode flips.
	KindModeChanged Kind = "mode.changed"
	// KindRemoteFailed is a user-facing notice that a remote operation failed.
	KindRemoteFailed Kind = "notice.remote_failed"
)

// Event is one change notification.
type Event struct {
	Kind      Kind      `json:"kind"`
	PersonID  string    `json:"person_id,omitempty"`
	Count     int       `json:"count,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is the write side of the bus. Stores depend on this, not on Broker.
type Publisher interface {
	Publish(Event)
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(Event) {}

// Subscription receives events until Close is called.
type Subscription struct {
	C <-chan Event

	ch     chan Event
	broker *Broker
	once   sync.Once
}

// Close unsubscribes and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s)
	})
}

// Broker fans events out to subscribers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	logger *log.Logger
}

// NewBroker creates a broker whose subscriptions buffer up to buffer events.
// If logger is nil, a default logger writing to stderr is used.
func NewBroker(buffer int, logger *log.Logger) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[notify] ", log.LstdFlags)
	}
	return &Broker{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a new subscriber.
func (b *Broker) Subscribe() *Subscription {
	ch := make(chan Event, b.buffer)
	sub := &Subscription{C: ch, ch: ch, broker: b}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Publish delivers ev to every subscriber without blocking.
func (b *Broker) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Printf("Warning: subscriber buffer full, dropping %s event", ev.Kind)
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}
