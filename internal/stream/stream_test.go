package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	s.Publish(Event{Type: "poi.approved", POIID: "poi-1", Timestamp: time.Now().UTC()})

	select {
	case evt := <-ch:
		if evt.Type != "poi.approved" || evt.POIID != "poi-1" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Never drained; fill past the channel buffer.
	s.Subscribe(ctx)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			s.Publish(Event{Type: "poi.created"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}

func TestSubscribeClosesOnContextEnd(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
	if got := s.Subscribers(); got != 0 {
		t.Fatalf("expected 0 subscribers, got %d", got)
	}
}
