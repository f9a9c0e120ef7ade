// Package notify wakes polling drivers ahead of their pacing interval.
package notify

import (
	"sync"
	"sync/atomic"
)

// defaultSignalBufferSize is the buffer size for wake signal channels.
// A sleeping driver needs one signal to wake; extra signals are dropped.
const defaultSignalBufferSize = 4

// Signal asks the drivers polling Source to poll now
type Signal struct {
	Source string // source name
	Reason string // who asked, for logs
}

// subscription represents a single subscriber.
type subscription struct {
	id      uint64
	sources []string
	ch      chan Signal
	closed  atomic.Bool
}

// matches checks if the source matches this subscription's filter.
func (s *subscription) matches(source string) bool {
	// empty = all sources
	if len(s.sources) == 0 {
		return true
	}

	for _, name := range s.sources {
		if name == source {
			return true
		}
	}
	return false
}

// close closes the subscription channel if not already closed.
func (s *subscription) close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}

// Hub is a thread-safe notification hub for wake signals.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[uint64]*subscription
	nextID        atomic.Uint64
}

// NewHub creates a new notification hub.
func NewHub() *Hub {
	return &Hub{
		subscriptions: make(map[uint64]*subscription),
	}
}

// Signal sends a wake signal to all matching subscribers (non-blocking) and
// returns how many received it.
func (h *Hub) Signal(source, reason string) int {
	signal := Signal{
		Source: source,
		Reason: reason,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.subscriptions {
		if !sub.matches(source) {
			continue
		}

		// Non-blocking send - drop if buffer full
		select {
		case sub.ch <- signal:
			delivered++
		default:
			// A wake is already queued
		}
	}
	return delivered
}

// Subscribe creates a subscription for the given sources (all when none) and
// returns the signal channel and cancel function. The cancel function is
// idempotent and closes the channel.
func (h *Hub) Subscribe(sources ...string) (<-chan Signal, func()) {
	sub := &subscription{
		id:      h.nextID.Add(1),
		sources: sources,
		ch:      make(chan Signal, defaultSignalBufferSize),
	}

	h.mu.Lock()
	h.subscriptions[sub.id] = sub
	h.mu.Unlock()

	cancel := func() {
		h.unsubscribe(sub.id)
	}

	return sub.ch, cancel
}

// Len returns the number of active subscriptions
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions)
}

// unsubscribe removes a subscription and closes its channel.
func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	sub, ok := h.subscriptions[id]
	if ok {
		delete(h.subscriptions, id)
	}
	h.mu.Unlock()

	if ok {
		sub.close()
	}
}
