package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	require.NotNil(t, hub)
	assert.NotNil(t, hub.subscribers)
	assert.False(t, hub.closed)
}

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, unsub := hub.Subscribe()
	defer unsub()

	hub.Publish(Event{
		Type:      EventClickDispatched,
		SessionID: "tab-1",
		RunID:     "run-1",
		Data:      map[string]any{"points": 2},
	})

	select {
	case received := <-ch:
		assert.Equal(t, EventClickDispatched, received.Type)
		assert.Equal(t, "tab-1", received.SessionID)
		assert.Equal(t, "run-1", received.RunID)
		assert.Equal(t, 2, received.Data["points"])
		assert.False(t, received.Timestamp.IsZero())
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestHub_MultipleSubscribers(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch1, unsub1 := hub.Subscribe()
	defer unsub1()
	ch2, unsub2 := hub.Subscribe()
	defer unsub2()

	hub.Publish(Event{Type: EventLoopStarted})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			assert.Equal(t, EventLoopStarted, received.Type)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, unsub := hub.Subscribe()
	unsub()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
	assert.NotPanics(t, unsub)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	ch, _ := hub.Subscribe()

	hub.Close()
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after hub close")

	assert.NotPanics(t, hub.Close)
	assert.NotPanics(t, func() { hub.Publish(Event{Type: EventLoopStopped}) })

	late, _ := hub.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed hub yields a closed channel")
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, unsub := hub.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			hub.Publish(Event{Type: EventClickDispatched, Data: map[string]any{"i": i}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	assert.Equal(t, subscriberBuffer, len(ch))
	assert.Equal(t, uint64(500-subscriberBuffer), hub.Dropped())
}

func TestHub_NilPublish(t *testing.T) {
	var hub *Hub
	assert.NotPanics(t, func() { hub.Publish(Event{Type: EventLoopStarted}) })
	assert.Zero(t, hub.Dropped())
}

func TestHub_ConcurrentPublish(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, unsub := hub.Subscribe()
	defer unsub()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				hub.Publish(Event{Type: EventClickDispatched})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 40, len(ch))
}
