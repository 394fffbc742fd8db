// Package event provides an in-process pub/sub bus for graph change
// notifications. The store publishes an event after every applied
// mutation; subscribers (autosave, UI refresh) consume them without
// blocking the editing path.
package event

import (
	"sync"
	"sync/atomic"
	"time"
)

// Type identifies the kind of change that occurred.
type Type string

// Change event types published by the store.
const (
	NodeAdded     Type = "node.added"
	NodeDeleted   Type = "node.deleted"
	NodeUpdated   Type = "node.updated"
	EdgeAdded     Type = "edge.added"
	EdgeDeleted   Type = "edge.deleted"
	GraphReplaced Type = "graph.replaced"
	HistoryMoved  Type = "history.moved"
)

// Event describes a single graph change.
type Event struct {
	// Type is the kind of change.
	Type Type
	// NodeID is the affected node, if any.
	NodeID string
	// EdgeID is the affected edge, if any.
	EdgeID string
	// At is when the change was applied.
	At time.Time
}

// Bus fans out events to subscribers.
//
// Publish never blocks: when a subscriber's buffer is full the event is
// dropped for that subscriber and counted. A dropped change notification
// is harmless for consumers that treat events as "something changed"
// triggers, which is the intended use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*Subscription
	nextID int
	buffer int
	closed bool
}

// Subscription is a registered event consumer.
type Subscription struct {
	// C delivers events. Closed when the subscription ends.
	C <-chan Event

	ch      chan Event
	types   map[Type]struct{} // nil means all types
	dropped atomic.Int64
	bus     *Bus
	id      int
	once    sync.Once
}

// DefaultBufferSize is the per-subscription channel buffer.
const DefaultBufferSize = 64

// NewBus creates a Bus with the given per-subscription buffer size.
// A size <= 0 uses DefaultBufferSize.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Bus{
		subs:   make(map[int]*Subscription),
		buffer: buffer,
	}
}

// Subscribe registers a consumer for the given event types.
// With no types, the subscription receives every event.
func (b *Bus) Subscribe(types ...Type) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	sub := &Subscription{
		C:   ch,
		ch:  ch,
		bus: b,
		id:  b.nextID,
	}
	if len(types) > 0 {
		sub.types = make(map[Type]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[b.nextID] = sub
	b.nextID++
	return sub
}

// Publish delivers evt to every matching subscriber without blocking.
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.types != nil {
			if _, ok := sub.types[evt.Type]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- evt:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Close shuts down the bus and closes all subscription channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// Unsubscribe removes the subscription and closes its channel.
// Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if _, ok := s.bus.subs[s.id]; ok {
			delete(s.bus.subs, s.id)
			close(s.ch)
		}
	})
}

// Dropped returns how many events were discarded because the
// subscription's buffer was full.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}
