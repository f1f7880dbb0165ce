package api

import (
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("trip1")
	b.Publish("trip1", SSEEvent{Type: "trip.optimized", Data: map[string]any{"tripId": "trip1"}})
	select {
	case evt := <-ch:
		if evt.Type != "trip.optimized" {
			t.Fatalf("unexpected event type: %s", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	b.Unsubscribe("trip1", ch)
}

func TestBrokerIsolatesTrips(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("trip1")
	defer b.Unsubscribe("trip1", ch)
	b.Publish("trip2", SSEEvent{Type: "trip.stop.added", Data: map[string]any{}})
	select {
	case evt := <-ch:
		t.Fatalf("event leaked across trips: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerDropsWhenSubscriberIsSlow(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("trip1")
	defer b.Unsubscribe("trip1", ch)
	// channel buffer is 8; publishing more must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish("trip1", SSEEvent{Type: "trip.stop.completed", Data: map[string]any{"i": i}})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}

func TestRedisBrokerUnsubscribeTearsDownPubSub(t *testing.T) {
	// No server needed: the pubsub never connects, but Close must still
	// end the pump goroutine and close the subscriber channel.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()
	b := NewRedisBroker(rdb)
	ch := b.Subscribe("trip1")
	b.Unsubscribe("trip1", ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("got an event from a dead subscription")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel still open after unsubscribe")
	}
	b.mu.Lock()
	remaining := len(b.subs)
	b.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("%d pubsubs still tracked after unsubscribe", remaining)
	}
}
