package event_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/weavely/weave/document"
	"github.com/weavely/weave/event"
)

func TestBus_BasicPublishSubscribe(t *testing.T) {
	t.Parallel()

	bus := event.NewBus(nil)
	defer bus.Close()

	done := make(chan event.TreeUpdatedEvent, 1)
	sub := event.Subscribe(bus, func(ctx context.Context, e event.TreeUpdatedEvent) {
		done <- e
	}, nil)
	defer sub.Unsubscribe()

	sessionID := uuid.New()
	event.Publish(bus, event.TreeUpdatedEvent{SessionID: sessionID, Revision: 3, Op: document.OpAdd})

	select {
	case e := <-done:
		if e.SessionID != sessionID || e.Revision != 3 {
			t.Errorf("received wrong event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Error("expected event to be received")
	}
}

func TestBus_FilterExcludesOtherSessions(t *testing.T) {
	t.Parallel()

	bus := event.NewBus(nil)
	defer bus.Close()

	mine := uuid.New()
	received := make(chan event.PreviewPublishEvent, 2)
	sub := event.Subscribe(bus, func(ctx context.Context, e event.PreviewPublishEvent) {
		received <- e
	}, func(e event.PreviewPublishEvent) bool {
		return e.SessionID == mine
	})
	defer sub.Unsubscribe()

	event.Publish(bus, event.PreviewPublishEvent{SessionID: uuid.New(), Env: "dev"})
	event.Publish(bus, event.PreviewPublishEvent{SessionID: mine, Env: "dev"})

	select {
	case e := <-received:
		if e.SessionID != mine {
			t.Errorf("filter let through session %s", e.SessionID)
		}
	case <-time.After(time.Second):
		t.Error("expected the matching event")
	}

	select {
	case e := <-received:
		t.Errorf("unexpected second event: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_ChannelSubscription(t *testing.T) {
	t.Parallel()

	bus := event.NewBus(nil)
	defer bus.Close()

	ch, sub := event.SubscribeChannel[event.TurnClassifiedEvent](bus, 4, nil)
	defer sub.Unsubscribe()

	event.Publish(bus, event.TurnClassifiedEvent{Category: "build", LeadAgent: "builder"})

	select {
	case e := <-ch:
		if e.Category != "build" {
			t.Errorf("category = %s, want build", e.Category)
		}
	case <-time.After(time.Second):
		t.Error("expected event on channel")
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	bus := event.NewBus(nil)
	defer bus.Close()

	received := make(chan struct{}, 2)
	sub := event.Subscribe(bus, func(ctx context.Context, e event.TreeUpdatedEvent) {
		received <- struct{}{}
	}, nil)

	sub.Unsubscribe()
	if n := event.SubscriberCount[event.TreeUpdatedEvent](bus); n != 0 {
		t.Fatalf("subscriber count = %d after unsubscribe, want 0", n)
	}

	event.Publish(bus, event.TreeUpdatedEvent{})

	select {
	case <-received:
		t.Error("received event after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	t.Parallel()

	bus := event.NewBus(nil)
	defer bus.Close()

	const subscribers = 5
	var wg sync.WaitGroup
	wg.Add(subscribers)
	for range subscribers {
		sub := event.Subscribe(bus, func(ctx context.Context, e event.TreeUpdatedEvent) {
			wg.Done()
		}, nil)
		defer sub.Unsubscribe()
	}

	event.Publish(bus, event.TreeUpdatedEvent{})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("expected all subscribers to be called")
	}
}

func TestBus_PublishAfterClose(t *testing.T) {
	t.Parallel()

	bus := event.NewBus(nil)

	ch, sub := event.SubscribeChannel[event.TreeUpdatedEvent](bus, 1, nil)
	defer sub.Unsubscribe()

	bus.Close()

	if !bus.IsClosed() {
		t.Error("IsClosed = false after Close")
	}

	// Must not panic, and the channel must be closed.
	event.Publish(bus, event.TreeUpdatedEvent{})

	if _, ok := <-ch; ok {
		t.Error("channel still open after Close")
	}
}
