package event

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Handler consumes one event. Handlers run synchronously on the publisher's
// goroutine; long-running work belongs in the subscriber's own goroutine.
type Handler func(Event)

// Bus is an in-process pub/sub for job lifecycle events. Optional front ends
// (settings window, tray icon) subscribe here instead of touching job records
// directly.
type Bus interface {
	Publish(event Event)
	Subscribe(eventType Type, handler Handler) (unsubscribe func())
}

func NewBus() Bus {
	return &inProcessBus{
		subscribers: make(map[Type][]subscriberEntry),
	}
}

type subscriberEntry struct {
	id      uint64
	handler Handler
}

type inProcessBus struct {
	mu          sync.RWMutex
	subscribers map[Type][]subscriberEntry
	nextID      uint64
}

func (b *inProcessBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]subscriberEntry, len(b.subscribers[event.Type]))
	copy(subs, b.subscribers[event.Type])
	b.mu.RUnlock()

	log.Trace().Str("event", string(event.Type)).Str("job_id", event.Job.ID).Msg("publishing event")
	for _, sub := range subs {
		sub.handler(event)
	}
}

func (b *inProcessBus) Subscribe(eventType Type, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriberEntry{
		id:      id,
		handler: handler,
	})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[eventType]
		for i, s := range subs {
			if s.id == id {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}
