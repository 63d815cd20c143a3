package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubsubDeliversToAllSubscribers(t *testing.T) {
	ps := NewPubsub()
	a := make(chan Event, 4)
	b := make(chan Event, 4)
	ps.Subscribe(a)
	ps.Subscribe(b)

	ps.Publish("invoice.paid", 7)

	for _, ch := range []chan Event{a, b} {
		select {
		case ev := <-ch:
			assert.Equal(t, "invoice.paid", ev.Name)
			assert.Equal(t, 7, ev.Payload)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestPubsubUnsubscribeIsSafe(t *testing.T) {
	ps := NewPubsub()
	ch := make(chan Event, 1)
	id := ps.Subscribe(ch)

	ps.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)

	// double unsubscribe and unknown handles are no-ops
	ps.Unsubscribe(id)
	ps.Unsubscribe("nonexistent")

	ps.Publish("invoice.paid", nil)
}

func TestPubsubSlowObserverDoesNotBlockPublish(t *testing.T) {
	ps := NewPubsub()
	slow := make(chan Event) // nobody ever reads
	healthy := make(chan Event, 8)
	ps.Subscribe(slow)
	ps.Subscribe(healthy)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			ps.Publish("invoice.paid", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow observer")
	}
	require.Len(t, healthy, 5)
}

func TestPubsubDropsWhenBufferFull(t *testing.T) {
	ps := NewPubsub()
	ch := make(chan Event, 2)
	ps.Subscribe(ch)

	for i := 0; i < 5; i++ {
		ps.Publish("invoice.paid", i)
	}
	// the first two fit, the rest are dropped rather than queued
	assert.Len(t, ch, 2)
	assert.Equal(t, 0, (<-ch).Payload)
	assert.Equal(t, 1, (<-ch).Payload)
}
