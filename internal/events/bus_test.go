package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishInSubscriptionOrder(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var order []string
	bus.Subscribe(func(Event) { order = append(order, "first") })
	bus.Subscribe(func(Event) { order = append(order, "second") })
	bus.Subscribe(func(Event) { order = append(order, "third") })

	bus.Publish(Event{Kind: KindFill, Ts: time.Now()})
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestPanickingHandlerIsolated(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var delivered int
	bus.Subscribe(func(Event) { panic("boom") })
	bus.Subscribe(func(Event) { delivered++ })

	require.NotPanics(t, func() { bus.Publish(Event{Kind: KindOrderTerminal}) })
	assert.Equal(t, 1, delivered, "handler after the panicking one must still run")
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var count int
	unsubscribe := bus.Subscribe(func(Event) { count++ })

	bus.Publish(Event{})
	unsubscribe()
	bus.Publish(Event{})
	assert.Equal(t, 1, count)
}
