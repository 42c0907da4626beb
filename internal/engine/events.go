// internal/engine/events.go
package engine

import (
	"sync"
	"time"

	"github.com/mjbeckett/stepflow/api/schemas"
)

// Bus distributes one run's progress events to any number of subscribers.
// Events are delivered in publish order; a subscriber that falls behind its
// buffer blocks the publisher rather than losing or reordering events
// (delivery is at-least-once, ordering is part of the contract).
type Bus struct {
	mu       sync.Mutex
	subs     []chan schemas.Event
	buffer   int
	isClosed bool
}

// NewBus creates a bus whose subscriber channels hold up to buffer events.
func NewBus(buffer int) *Bus {
	if buffer < 0 {
		buffer = 0
	}
	return &Bus{buffer: buffer}
}

// Subscribe registers a new consumer. The returned channel is closed when
// the run finishes.
func (b *Bus) Subscribe() <-chan schemas.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan schemas.Event, b.buffer)
	if b.isClosed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish appends an event to every subscriber's stream. Publishing after
// Close is a no-op.
func (b *Bus) Publish(ev schemas.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isClosed {
		return
	}
	for _, ch := range b.subs {
		ch <- ev
	}
}

// Close ends all subscriber streams. Safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isClosed {
		return
	}
	b.isClosed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
