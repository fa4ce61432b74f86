package service

import (
	"sync"

	"github.com/joeblew999/plat-layers/internal/layertree"
)

// EventType tells what changed on a node.
type EventType string

const (
	StatusEvent EventType = "status"
	FilterEvent EventType = "filter"
)

// Event represents a change to one node of the layer tree.
type Event struct {
	Type   EventType        `json:"type"`
	Path   string           `json:"path"`
	Status layertree.Status `json:"status"`
	Filter string           `json:"filter,omitempty"`
}

// EventBus is a simple fan-out pub/sub for layer tree events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}
