package core

import (
	"sync"
	"time"
)

// Event is a manager activity record streamed to websocket subscribers.
type Event struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// EventHub fans manager events out to subscribers. Slow subscribers drop
// events rather than blocking the publisher.
type EventHub struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subscribers: make(map[chan Event]struct{})}
}

// Subscribe registers a new listener. The returned cancel function must be
// called when the listener goes away.
func (h *EventHub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *EventHub) Publish(eventType, message string) {
	event := Event{Type: eventType, Message: message, Time: time.Now()}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
