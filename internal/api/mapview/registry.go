// Package mapview contains the Datastar SSE handlers for the property map and
// the location picker.
package mapview

import (
	"sync"
	"time"
)

// registry holds live sessions keyed by id. Entries idle longer than ttl are
// evicted on the next put.
type registry[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*entry[T]
	now     func() time.Time
}

type entry[T any] struct {
	value    T
	lastSeen time.Time
}

func newRegistry[T any](ttl time.Duration) *registry[T] {
	return &registry[T]{ttl: ttl, entries: map[string]*entry[T]{}, now: time.Now}
}

func (r *registry[T]) put(id string, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if r.ttl > 0 {
		for k, e := range r.entries {
			if now.Sub(e.lastSeen) > r.ttl {
				delete(r.entries, k)
			}
		}
	}
	r.entries[id] = &entry[T]{value: v, lastSeen: now}
}

// get returns the session and marks it as used.
func (r *registry[T]) get(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	e.lastSeen = r.now()
	return e.value, true
}

func (r *registry[T]) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

func (r *registry[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
