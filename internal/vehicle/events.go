package vehicle

import "sync"

// TextSubscription is a buffered queue of asynchronous status texts
// from the vehicle. Every published event is queued for every open
// subscription until drained, so texts emitted between two polls of a
// waiter are never lost. A subscription is drained by exactly one
// waiter at a time.
type TextSubscription struct {
	mu     sync.Mutex
	queue  []string
	closed bool
}

// Next removes and returns the oldest queued text.
// The second return value is false when the queue is empty.
func (s *TextSubscription) Next() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return "", false
	}
	text := s.queue[0]
	s.queue = s.queue[1:]
	return text, true
}

// Drain removes and returns all queued texts in publish order.
// Returns nil if the queue is empty.
func (s *TextSubscription) Drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return nil
	}
	out := s.queue
	s.queue = nil
	return out
}

// Len returns the number of queued texts.
func (s *TextSubscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *TextSubscription) publish(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, text)
}

func (s *TextSubscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.queue = nil
}

// TextBroker fans status texts out to any number of subscriptions.
// Link implementations embed one and publish into it.
type TextBroker struct {
	mu   sync.Mutex
	subs []*TextSubscription
}

// Subscribe registers and returns a new buffered subscription.
func (b *TextBroker) Subscribe() *TextSubscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &TextSubscription{}
	b.subs = append(b.subs, sub)
	return sub
}

// Publish queues text on every open subscription.
func (b *TextBroker) Publish(text string) {
	b.mu.Lock()
	subs := make([]*TextSubscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.publish(text)
	}
}

// CloseAll closes every subscription and forgets them.
func (b *TextBroker) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		sub.close()
	}
	b.subs = nil
}
