// Package event carries fired reminders from the dispatcher to whatever
// session UI is listening, decoupling the scheduling core from display
// side effects.
package event

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Fired is published once per delivered occurrence of a reminder.
type Fired struct {
	ReminderID uuid.UUID       `json:"reminder_id"`
	OwnerID    uuid.UUID       `json:"owner_id"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	Category   string          `json:"category"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	FiredAt    time.Time       `json:"fired_at"`
}

// Hub is an in-memory fanout of Fired events keyed by owner.
//
// Contract:
//   - Publish never blocks.
//   - Subscribers get buffered channels; a slow subscriber drops events.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[uint64]chan Fired
	seq  atomic.Uint64
}

// NewHub returns an empty hub. It owns no background goroutines.
func NewHub() *Hub {
	return &Hub{subs: map[uuid.UUID]map[uint64]chan Fired{}}
}

// Publish fans e out to the owner's subscribers and returns how many
// received it. Zero subscribers is a valid state, not an error: it means no
// session is listening.
func (h *Hub) Publish(e Fired) int {
	if e.FiredAt.IsZero() {
		e.FiredAt = time.Now()
	}

	// Snapshot so we don't hold the lock while attempting sends.
	h.mu.RLock()
	chs := make([]chan Fired, 0, len(h.subs[e.OwnerID]))
	for _, ch := range h.subs[e.OwnerID] {
		chs = append(chs, ch)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, ch := range chs {
		// Non-blocking delivery; a concurrently closed channel is survivable.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
				delivered++
			default:
			}
		}()
	}
	return delivered
}

// Subscribe registers a listener for one owner's fired reminders.
// The returned func unsubscribes and closes the channel; it is safe to call
// more than once.
func (h *Hub) Subscribe(ownerID uuid.UUID, buffer int) (<-chan Fired, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Fired, buffer)
	id := h.seq.Add(1)

	h.mu.Lock()
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = map[uint64]chan Fired{}
	}
	h.subs[ownerID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[ownerID], id)
			if len(h.subs[ownerID]) == 0 {
				delete(h.subs, ownerID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Subscribers reports how many listeners an owner currently has.
func (h *Hub) Subscribers(ownerID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[ownerID])
}
