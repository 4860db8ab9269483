package relay

import (
	"context"
	"sync"
)

const DefaultCapacity = 10

// Bus fans every published Message out to all live subscriptions.
// Each subscription buffers at most capacity messages; when it is full the
// oldest unread message is dropped for that subscription only.
type Bus struct {
	capacity int

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		capacity: capacity,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Subscribe returns a subscription that observes only messages published
// after this call. Subscribing to a closed bus yields a subscription whose
// Recv returns ErrBusClosed.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{
		bus:   b,
		queue: make([]Message, b.capacity),
		ready: make(chan struct{}, 1),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closed = true
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish queues msg on every current subscription and reports how many
// received it. It never blocks on a slow subscriber.
func (b *Bus) Publish(msg Message) int {
	// Holding the bus lock for the whole fan-out gives every subscription
	// the same publish order.
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	for s := range b.subs {
		if s.push(msg) {
			MessagesDropped.Inc()
		}
	}
	MessagesPublished.Inc()
	return len(b.subs)
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches every subscription. Buffered messages remain readable;
// after that Recv returns ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.close()
		delete(b.subs, s)
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
}

// Subscription is one receiver of a Bus. Recv must be called from a single
// goroutine; Close may be called from any.
type Subscription struct {
	bus *Bus

	mu     sync.Mutex
	queue  []Message // ring buffer
	head   int
	count  int
	closed bool

	ready chan struct{}
}

// Recv returns the next message in publish order. It blocks until one is
// available, the subscription or bus is closed (ErrBusClosed), or ctx ends.
func (s *Subscription) Recv(ctx context.Context) (Message, error) {
	for {
		s.mu.Lock()
		if s.count > 0 {
			msg := s.queue[s.head]
			s.queue[s.head] = Message{}
			s.head = (s.head + 1) % len(s.queue)
			s.count--
			s.mu.Unlock()
			return msg, nil
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return Message{}, ErrBusClosed
		}

		select {
		case <-s.ready:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Close removes the subscription from its bus. Messages published
// afterwards are not delivered to it.
func (s *Subscription) Close() {
	s.bus.remove(s)
	s.close()
}

// push appends msg and reports whether the oldest message was dropped to
// make room.
func (s *Subscription) push(msg Message) (dropped bool) {
	s.mu.Lock()
	if s.count == len(s.queue) {
		s.head = (s.head + 1) % len(s.queue)
		s.count--
		dropped = true
	}
	s.queue[(s.head+s.count)%len(s.queue)] = msg
	s.count++
	s.mu.Unlock()

	s.signal()
	return dropped
}

func (s *Subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}
