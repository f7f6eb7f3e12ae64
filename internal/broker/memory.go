package broker

import (
	"context"
	"sync"
)

// MemoryBus is an in-process broker. Every Backend created from one bus sees
// the others' publishes, which stands in for several relay instances sharing
// a real broker.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string]map[*Memory]Handler
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[*Memory]Handler)}
}

// Backend returns a new instance attachment to the bus.
func (b *MemoryBus) Backend() *Memory {
	return &Memory{bus: b}
}

func (b *MemoryBus) publish(ctx context.Context, roomID string, payload []byte) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[roomID]))
	for _, h := range b.subs[roomID] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, roomID, payload)
	}
}

// Memory delivers synchronously on the publisher's goroutine, so per-room
// order is the order in which Publish returns.
type Memory struct {
	bus *MemoryBus
}

func NewMemory() *Memory {
	return NewMemoryBus().Backend()
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Publish(ctx context.Context, roomID string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.bus.publish(context.WithoutCancel(ctx), roomID, payload)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, roomID string, h Handler) error {
	m.bus.mu.Lock()
	defer m.bus.mu.Unlock()

	subs := m.bus.subs[roomID]
	if subs == nil {
		subs = make(map[*Memory]Handler)
		m.bus.subs[roomID] = subs
	}
	subs[m] = h
	return nil
}

func (m *Memory) Unsubscribe(ctx context.Context, roomID string) error {
	m.bus.mu.Lock()
	defer m.bus.mu.Unlock()

	delete(m.bus.subs[roomID], m)
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error {
	m.bus.mu.Lock()
	defer m.bus.mu.Unlock()

	for _, subs := range m.bus.subs {
		delete(subs, m)
	}
	return nil
}
