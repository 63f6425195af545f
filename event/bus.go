package event

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/cachekit/observe"
)

// Handler receives a payload during dispatch.
type Handler func(Payload)

// Bus is a process-wide publish/subscribe channel for change notifications.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Ordering: within one Notify, handlers run in subscription order.
// - Errors: a panicking handler is recovered and logged; delivery continues.
type Bus struct {
	logger observe.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[Type][]*busSub
}

type busSub struct {
	id      uint64
	handler Handler
}

// NewBus creates a bus. A nil logger disables failure reporting.
func NewBus(logger observe.Logger) *Bus {
	if logger == nil {
		logger = observe.NewNoopLogger()
	}
	return &Bus{
		logger: logger.WithComponent("event.bus"),
		subs:   make(map[Type][]*busSub),
	}
}

// Subscribe registers a handler for the given type and returns a function
// that removes it. The handler must not be nil.
func (b *Bus) Subscribe(t Type, h Handler) func() {
	if h == nil {
		panic("event: nil handler")
	}

	b.mu.Lock()
	b.nextID++
	sub := &busSub{id: b.nextID, handler: h}
	b.subs[t] = append(b.subs[t], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(t, sub.id) })
	}
}

func (b *Bus) remove(t Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[t]
	for i, s := range list {
		if s.id == id {
			b.subs[t] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[t]) == 0 {
		delete(b.subs, t)
	}
}

// Notify dispatches the payload synchronously to every current subscriber for
// the type, in subscription order. A zero Timestamp is filled in.
func (b *Bus) Notify(t Type, p Payload) {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}

	b.mu.RLock()
	list := make([]*busSub, len(b.subs[t]))
	copy(list, b.subs[t])
	b.mu.RUnlock()

	for _, s := range list {
		b.dispatch(t, s, p)
	}
}

func (b *Bus) dispatch(t Type, s *busSub, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(context.Background(), "subscriber panicked",
				observe.Field{Key: "event_type", Value: string(t)},
				observe.Field{Key: "subscriber_id", Value: s.id},
				observe.Field{Key: "panic", Value: fmt.Sprint(r)},
			)
		}
	}()
	s.handler(p)
}

// SubscriberCount returns the number of subscribers for the type.
func (b *Bus) SubscriberCount(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[t])
}

// Types returns the event types with at least one subscriber, sorted.
func (b *Bus) Types() []Type {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]Type, 0, len(b.subs))
	for t := range b.subs {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// UnsubscribeAll removes every subscriber for the type.
func (b *Bus) UnsubscribeAll(t Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, t)
}

// Reset drops all subscribers for all types. Intended for test isolation.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[Type][]*busSub)
}
