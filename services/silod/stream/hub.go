package stream

import (
	"encoding/json"
	"fmt"
	"sync"

	"hooliganhorde/integrations/webhooks"
)

const (
	defaultBuffer  = 32
	defaultBacklog = 16
)

// Event is a single message pushed to stream subscribers.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Hub fans silo notifications out to live subscribers. It keeps a short
// backlog so fresh subscribers see the most recent events. Subscribers that
// fall behind are dropped and their channel closed.
type Hub struct {
	mu          sync.Mutex
	subscribers map[uint64]chan Event
	next        uint64
	buffer      int
	backlog     []Event
	backlogSize int
}

// NewHub builds a hub. Non-positive sizes fall back to defaults.
func NewHub(buffer, backlog int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	return &Hub{
		subscribers: make(map[uint64]chan Event),
		buffer:      buffer,
		backlogSize: backlog,
	}
}

// PlanApplied publishes a plan applied notification.
func (h *Hub) PlanApplied(payload webhooks.PlanAppliedPayload) error {
	return h.publish(string(payload.Type), payload)
}

// Sunrise publishes a sunrise notification.
func (h *Hub) Sunrise(payload webhooks.SunrisePayload) error {
	return h.publish(string(payload.Type), payload)
}

// Subscribe registers a subscriber. It returns the live channel, a copy of
// the backlog and a cancel func that is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, []Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan Event, h.buffer)
	h.subscribers[id] = ch
	backlog := append([]Event(nil), h.backlog...)
	return ch, backlog, func() { h.drop(id) }
}

// Subscribers reports the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) publish(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("stream: encode %s: %w", eventType, err)
	}
	event := Event{Type: eventType, Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.backlog = append(h.backlog, event)
	if len(h.backlog) > h.backlogSize {
		h.backlog = h.backlog[len(h.backlog)-h.backlogSize:]
	}
	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			close(ch)
			delete(h.subscribers, id)
		}
	}
	return nil
}

func (h *Hub) drop(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}
