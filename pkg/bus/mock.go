package bus

import (
	"fmt"
	"sync"
)

// MemoryBus is an in-process Bus for testing. Publish delivers to
// subscribers synchronously on the caller's goroutine and records every
// message per topic.
type MemoryBus struct {
	mu        sync.Mutex
	closed    bool
	handlers  map[string][]Handler
	published map[string][][]byte
}

// NewMemoryBus creates an empty in-memory bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers:  make(map[string][]Handler),
		published: make(map[string][][]byte),
	}
}

// Publish records the message and delivers it synchronously.
func (m *MemoryBus) Publish(topic string, data []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("bus closed")
	}
	m.published[topic] = append(m.published[topic], data)
	handlers := m.handlers[topic]
	m.mu.Unlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

// Subscribe registers a handler.
func (m *MemoryBus) Subscribe(topic string, handler Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("bus closed")
	}
	m.handlers[topic] = append(m.handlers[topic], handler)
	return nil
}

// Close marks the bus closed.
func (m *MemoryBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Published returns the messages recorded for a topic, in publish order.
func (m *MemoryBus) Published(topic string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.published[topic]))
	copy(out, m.published[topic])
	return out
}
