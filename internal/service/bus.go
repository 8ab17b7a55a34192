package service

import "sync"

// ChangeEvent reports that a property row changed upstream.
type ChangeEvent struct {
	PropertyID int64  `json:"property_id"`
	Action     string `json:"action"` // "created", "updated", "deleted"
}

// EventBus is a fan-out pub/sub for property change events. It is built by
// the composition root and handed to whoever needs it.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[chan ChangeEvent]struct{}
	closed bool
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan ChangeEvent]struct{})}
}

// Publish sends an event to all subscribers without blocking.
func (b *EventBus) Publish(e ChangeEvent) {
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

// Subscribe returns a buffered channel that receives events. After Close it
// returns an already-closed channel.
func (b *EventBus) Subscribe() chan ChangeEvent {
	ch := make(chan ChangeEvent, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// Close closes every subscriber channel.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = map[chan ChangeEvent]struct{}{}
}
