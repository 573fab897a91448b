package realtime

import (
	"context"
	"sync"
)

// MemoryTransport fans envelopes out to in-process subscribers.
// Slow subscribers are dropped instead of blocking publishers; their
// subscription channel is closed so the consumer can reconcile.
// All methods are safe for concurrent use.
type MemoryTransport struct {
	topics     map[string]map[*memorySubscription]struct{}
	bufferSize int
	closed     bool
	mu         sync.RWMutex
	dropWg     sync.WaitGroup
}

// NewMemoryTransport creates a transport with the given per-subscriber buffer.
// A minimum buffer size of 1 is enforced.
func NewMemoryTransport(bufferSize int) *MemoryTransport {
	return &MemoryTransport{
		topics:     make(map[string]map[*memorySubscription]struct{}),
		bufferSize: max(bufferSize, 1),
	}
}

func (t *MemoryTransport) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	if topic == "" {
		return nil, ErrInvalidTopic
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTransportClosed
	}

	sub := &memorySubscription{
		ch:        make(chan Envelope, t.bufferSize),
		topic:     topic,
		transport: t,
	}
	subs, ok := t.topics[topic]
	if !ok {
		subs = make(map[*memorySubscription]struct{})
		t.topics[topic] = subs
	}
	subs[sub] = struct{}{}

	return sub, nil
}

// Publish never blocks on subscribers.
func (t *MemoryTransport) Publish(_ context.Context, env Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return ErrTransportClosed
	}

	for sub := range t.topics[env.Topic] {
		if !sub.send(env) {
			// Removal needs the write lock; do it off the publish path.
			t.dropWg.Add(1)
			go func() {
				defer t.dropWg.Done()
				t.remove(sub)
			}()
		}
	}

	return nil
}

// Subscribers reports the number of live subscriptions on topic.
func (t *MemoryTransport) Subscribers(topic string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.topics[topic])
}

// Close ends every subscription. It is safe to call Close multiple times.
func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for _, subs := range t.topics {
		for sub := range subs {
			sub.close()
		}
	}
	clear(t.topics)
	t.mu.Unlock()

	t.dropWg.Wait()
	return nil
}

func (t *MemoryTransport) remove(sub *memorySubscription) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if subs, ok := t.topics[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(t.topics, sub.topic)
		}
	}
	sub.close()
}

type memorySubscription struct {
	ch        chan Envelope
	topic     string
	transport *MemoryTransport
	closed    bool
	mu        sync.RWMutex
}

func (s *memorySubscription) C() <-chan Envelope { return s.ch }

func (s *memorySubscription) Close() error {
	s.transport.remove(s)
	return nil
}

func (s *memorySubscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}

func (s *memorySubscription) send(env Envelope) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- env:
		return true
	default:
		return false
	}
}
