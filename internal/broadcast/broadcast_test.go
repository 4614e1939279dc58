package broadcast

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversInOrder(t *testing.T) {
	hub := NewHub("srv")
	ch, cancel := hub.Subscribe()
	defer cancel()

	for i := 0; i < 10; i++ {
		hub.Publish(Event{
			Type: TypeMessage,
			Data: json.RawMessage(fmt.Sprintf(`{"id":%d}`, i)),
		})
	}

	for i := 0; i < 10; i++ {
		event := <-ch
		assert.Equal(t, TypeMessage, event.Type)
		assert.JSONEq(t, fmt.Sprintf(`{"id":%d}`, i), string(event.Data))
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub("srv")

	ch1, cancel1 := hub.Subscribe()
	defer cancel1()
	ch2, cancel2 := hub.Subscribe()
	defer cancel2()

	hub.Publish(Event{Type: TypeMessage, Data: json.RawMessage(`{"jsonrpc":"2.0"}`)})

	for _, ch := range []<-chan Event{ch1, ch2} {
		event := <-ch
		assert.JSONEq(t, `{"jsonrpc":"2.0"}`, string(event.Data))
	}
}

func TestSlowSubscriberIsPruned(t *testing.T) {
	hub := NewHub("srv")

	slow, cancelSlow := hub.Subscribe()
	defer cancelSlow()
	fast, cancelFast := hub.Subscribe()
	defer cancelFast()

	// Overflow the slow subscriber's buffer while draining the fast one.
	total := subscriberBuffer + 10
	received := 0
	for i := 0; i < total; i++ {
		hub.Publish(Event{Type: TypeMessage, Data: json.RawMessage(`{}`)})
		select {
		case <-fast:
			received++
		default:
			t.Fatal("fast subscriber should keep receiving")
		}
	}

	assert.Equal(t, total, received)
	assert.Equal(t, 1, hub.SubscriberCount())

	// The pruned subscriber's channel is closed after its buffer drains.
	drained := 0
	for range slow {
		drained++
	}
	assert.Equal(t, subscriberBuffer, drained)
}

func TestCancelIsIdempotent(t *testing.T) {
	hub := NewHub("srv")
	_, cancel := hub.Subscribe()

	cancel()
	cancel()

	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestCloseClosesSubscribers(t *testing.T) {
	hub := NewHub("srv")
	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Close()

	_, open := <-ch
	require.False(t, open)

	// Publishing and subscribing after Close are no-ops.
	hub.Publish(Event{Type: TypeMessage})
	late, _ := hub.Subscribe()
	_, open = <-late
	assert.False(t, open)
}
