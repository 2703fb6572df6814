package notify

import (
	"context"
	"testing"
	"time"

	"bank.com/mop/internal/cases"
)

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	s.CaseChanged(cases.Case{ID: "MOP-2026-001", Status: cases.StatusPendingReview}, "Case created")

	select {
	case evt := <-ch:
		if evt.CaseID != "MOP-2026-001" || evt.Action != "Case created" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestCancelledSubscriberIsRemoved(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch := s.Subscribe(ctx)
	cancel()

	deadline := time.Now().Add(time.Second)
	for s.SubscriberCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber was not removed after context cancellation")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Channel must be closed so SSE handlers terminate their loops.
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancellation")
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Subscribe(ctx) // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Publish(CaseEvent{CaseID: "MOP-2026-002"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
