package eventbus

import (
	"sync"
	"time"
)

// Event is a lightweight, in-memory signal used to decouple components.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Slow subscribers lose events (bounded backpressure).
//
// Data should be small and ideally JSON-serializable.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) *Subscription
}

// Subscription owns the receiving side of a bus channel. Close is idempotent
// and detaches the subscriber; events published afterwards are not delivered.
type Subscription struct {
	C <-chan Event

	bus    *memBus
	id     uint64
	ch     chan Event
	closed bool
	mu     sync.Mutex
}

func (s *Subscription) Close() {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	if already {
		return
	}
	s.bus.detach(s.id)
	close(s.ch)
}

// New returns a simple in-memory fanout bus.
//
// It intentionally does not own any background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]*Subscription{}}
}

type memBus struct {
	mu   sync.Mutex
	subs map[uint64]*Subscription
	seq  uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	// Snapshot subscribers so Publish doesn't hold the bus lock while sending.
	b.mu.Lock()
	snapshot := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		snapshot = append(snapshot, s)
	}
	b.mu.Unlock()

	for _, s := range snapshot {
		// The subscription mutex keeps the send ordered against Close, so we
		// never send on a closed channel.
		s.mu.Lock()
		if !s.closed {
			select {
			case s.ch <- e:
			default:
				// subscriber is slow, drop
			}
		}
		s.mu.Unlock()
	}
}

func (b *memBus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.seq++
	sub := &Subscription{C: ch, bus: b, id: b.seq, ch: ch}
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

func (b *memBus) detach(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}
