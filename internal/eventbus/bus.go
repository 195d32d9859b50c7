package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event types published over the bus.
const (
	TypeSessionStarted   = "session.started"
	TypeItemAdded        = "order.item_added"
	TypeItemCancelled    = "order.item_cancelled"
	TypeOrderCancelled   = "order.cancelled"
	TypeOrderConfirmed   = "order.confirmed"
	TypeOrderFinalized   = "order.finalized"
	TypeFallbackDegraded = "turn.fallback_degraded"
)

// Event is one thing that happened to a session's order.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	SessionID string            `json:"session_id"`
	Payload   string            `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan *Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan *Event) {
	id := ulid.Make().String()
	ch := make(chan *Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

func (b *Bus) PublishNew(eventType, sessionID, payload string, metadata map[string]string) {
	b.Publish(&Event{
		ID:        ulid.Make().String(),
		Type:      eventType,
		SessionID: sessionID,
		Payload:   payload,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	})
}
