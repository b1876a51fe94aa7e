// Package events carries terminal order and fill notifications to outside
// consumers (notification delivery, reporting). Handlers are registered
// explicitly, invoked in subscription order, and isolated from each other:
// one handler failing or panicking never blocks the rest.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Kind enumerates published event types.
type Kind string

const (
	KindOrderTerminal Kind = "order_terminal"
	KindFill          Kind = "fill"
	KindFeedState     Kind = "feed_state"
)

// Event is a flat, self-contained record; it deliberately avoids importing
// pipeline types so any layer can publish without cycles.
type Event struct {
	Kind    Kind
	Symbol  string
	OrderID string
	Side    string
	Qty     float64
	Price   float64
	Status  string
	Reason  string
	Ts      time.Time
}

// Handler consumes one event.
type Handler func(Event)

// Bus is a synchronous publish/subscribe fan-out.
type Bus struct {
	mu       sync.RWMutex
	log      zerolog.Logger
	nextID   int
	handlers []subscription
}

type subscription struct {
	id int
	fn Handler
}

// NewBus constructs an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{log: log}
}

// Subscribe registers a handler and returns its unsubscribe function.
// Handlers run in subscription order on the publisher's goroutine.
func (b *Bus) Subscribe(fn Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers = append(b.handlers, subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.handlers {
			if sub.id == id {
				b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to every subscriber in order. A panicking
// handler is logged and skipped.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers))
	copy(subs, b.handlers)
	b.mu.RUnlock()

	for _, sub := range subs {
		b.safeInvoke(sub, ev)
	}
}

func (b *Bus) safeInvoke(sub subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Str("kind", string(ev.Kind)).Msg("event handler panicked")
		}
	}()
	sub.fn(ev)
}
