package messaging

import (
	"context"
	"sync"
)

// Memory is an in-process Bus. Each subscriber gets its own buffered queue;
// a subscriber that falls behind loses messages instead of blocking Publish.
type Memory struct {
	mu     sync.RWMutex
	subs   map[chan []byte]struct{}
	buffer int
	closed chan struct{}
	once   sync.Once
}

func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 256
	}
	return &Memory{
		subs:   make(map[chan []byte]struct{}),
		buffer: buffer,
		closed: make(chan struct{}),
	}
}

func (m *Memory) Publish(ctx context.Context, body []byte) error {
	select {
	case <-m.closed:
		return ErrBusClosed
	default:
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for ch := range m.subs {
		select {
		case ch <- body:
		default:
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, handler Handler) error {
	ch := make(chan []byte, m.buffer)

	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.subs, ch)
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.closed:
			return ErrBusClosed
		case body := <-ch:
			handler(ctx, body)
		}
	}
}

// Subscribers reports how many Subscribe calls are active.
func (m *Memory) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}
