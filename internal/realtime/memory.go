package realtime

import (
	"context"
	"sync"
)

// MemoryNotifier is an in-process notifier for tests and single-instance
// development runs. Delivery is FIFO per topic.
type MemoryNotifier struct {
	mu     sync.Mutex
	subs   map[string][]*memorySubscription
	closed bool
}

// NewMemoryNotifier creates an empty in-process notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{subs: make(map[string][]*memorySubscription)}
}

// Publish delivers the event to every live subscription on the topic.
func (n *MemoryNotifier) Publish(_ context.Context, topic string, event Event) error {
	n.mu.Lock()
	targets := make([]*memorySubscription, len(n.subs[topic]))
	copy(targets, n.subs[topic])
	n.mu.Unlock()

	for _, sub := range targets {
		sub.deliver(event)
	}
	return nil
}

// Subscribe opens a feed for one topic.
func (n *MemoryNotifier) Subscribe(_ context.Context, topic string) (Subscription, error) {
	sub := &memorySubscription{
		notifier: n,
		topic:    topic,
		events:   make(chan Event, 64),
	}
	n.mu.Lock()
	n.subs[topic] = append(n.subs[topic], sub)
	n.mu.Unlock()
	return sub, nil
}

// Close tears down every subscription.
func (n *MemoryNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	all := n.subs
	n.subs = make(map[string][]*memorySubscription)
	n.mu.Unlock()

	for _, subs := range all {
		for _, sub := range subs {
			sub.shutdown()
		}
	}
	return nil
}

func (n *MemoryNotifier) remove(target *memorySubscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	subs := n.subs[target.topic]
	for i, sub := range subs {
		if sub == target {
			n.subs[target.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

type memorySubscription struct {
	notifier *MemoryNotifier
	topic    string
	events   chan Event

	mu     sync.Mutex
	closed bool
}

func (s *memorySubscription) Events() <-chan Event { return s.events }

func (s *memorySubscription) Close() error {
	s.notifier.remove(s)
	s.shutdown()
	return nil
}

// shutdown and deliver share a mutex so the event channel is never closed
// mid-send.
func (s *memorySubscription) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

func (s *memorySubscription) deliver(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		// a concurrently closed subscription loses the event
		return
	}
	select {
	case s.events <- event:
	default:
	}
}
