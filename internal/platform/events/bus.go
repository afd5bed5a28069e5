// Package events provides the in-process change feed that report saves
// publish to and editor sessions subscribe to. Subscriptions are explicit
// handles whose Close releases the listener, so a session's lifetime bounds
// its subscription.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// Event is one change notification on a topic.
type Event struct {
	Topic     string
	PatientID uuid.UUID
	Kind      string
	Data      map[string]interface{}
}

// Subscription is a live listener on a topic. Events arrive on C. Close
// detaches the listener and closes C; it is safe to call more than once.
type Subscription struct {
	C <-chan Event

	bus   *Bus
	topic string
	id    int
	ch    chan Event
	once  sync.Once
}

// Close detaches the subscription from the bus.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s.topic, s.id)
		close(s.ch)
	})
}

// Bus is a topic-based in-process publish/subscribe hub.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Event
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]chan Event)}
}

// Subscribe registers a listener on topic. The returned handle must be closed
// when the listener goes away.
func (b *Bus) Subscribe(topic string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 16)
	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan Event)
	}
	b.subs[topic][id] = ch

	return &Subscription{C: ch, bus: b, topic: topic, id: id, ch: ch}
}

// Publish delivers ev to every subscriber of its topic. Slow subscribers with
// a full buffer are skipped rather than blocking the publisher.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[ev.Topic] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports how many listeners a topic currently has.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

func (b *Bus) unsubscribe(topic string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subs[topic]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(b.subs, topic)
		}
	}
}
