package realtime

import (
	"context"
	"sync"
)

// DefaultBuffer is the per-subscription queue length.
const DefaultBuffer = 64

// MemoryHub is an in-process Hub. Delivery never blocks the publisher: a
// subscriber whose queue is full misses the change.
type MemoryHub struct {
	mu     sync.RWMutex
	buffer int
	topics map[string]map[*memorySubscription]struct{}
}

// NewMemoryHub creates a hub. A buffer <= 0 uses DefaultBuffer.
func NewMemoryHub(buffer int) *MemoryHub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &MemoryHub{
		buffer: buffer,
		topics: make(map[string]map[*memorySubscription]struct{}),
	}
}

// Publish fans the change out to every matching subscription.
func (h *MemoryHub) Publish(ctx context.Context, change Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var targets []*memorySubscription
	h.mu.RLock()
	for _, topic := range topicsFor(change) {
		for sub := range h.topics[topic] {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(change)
	}
	return nil
}

// Subscribe registers a subscription on table narrowed by filter.
func (h *MemoryHub) Subscribe(ctx context.Context, table string, filter Filter) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &memorySubscription{
		hub:   h,
		topic: Topic(table, filter),
		ch:    make(chan Change, h.buffer),
	}
	h.mu.Lock()
	if h.topics[sub.topic] == nil {
		h.topics[sub.topic] = make(map[*memorySubscription]struct{})
	}
	h.topics[sub.topic][sub] = struct{}{}
	h.mu.Unlock()
	return sub, nil
}

// Subscribers counts live subscriptions on table narrowed by filter.
func (h *MemoryHub) Subscribers(table string, filter Filter) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[Topic(table, filter)])
}

// Active counts live subscriptions across all topics.
func (h *MemoryHub) Active() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.topics {
		n += len(subs)
	}
	return n
}

func (h *MemoryHub) remove(sub *memorySubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.topics[sub.topic]
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.topics, sub.topic)
	}
}

type memorySubscription struct {
	hub    *MemoryHub
	topic  string
	mu     sync.Mutex
	closed bool
	ch     chan Change
}

func (s *memorySubscription) Events() <-chan Change {
	return s.ch
}

func (s *memorySubscription) deliver(change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- change:
	default:
	}
}

func (s *memorySubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()
	s.hub.remove(s)
	return nil
}
