package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBusFanOut(t *testing.T) {
	bus := NewEventBus()
	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Publish(ChangeEvent{PropertyID: 4, Action: "updated"})

	assert.Equal(t, int64(4), (<-a).PropertyID)
	assert.Equal(t, "updated", (<-b).Action)

	bus.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open)

	// Unsubscribing twice is harmless.
	bus.Unsubscribe(a)

	bus.Close()
	_, open = <-b
	assert.False(t, open)

	_, open = <-bus.Subscribe()
	assert.False(t, open)
}
