package stream

import (
	"testing"
	"time"

	"github.com/launchlayer/curve_layer/internal/app/domain/event"
	"github.com/launchlayer/curve_layer/pkg/logger"
)

func evt(id string) event.Event {
	return event.Event{ID: id, TokenID: "tok", Type: event.TypeBought}
}

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	hub := NewHub(8, logger.NewDefault("test"))
	ch, cancel := hub.Subscribe(4)
	defer cancel()

	hub.Publish(evt("1"), evt("2"))

	for _, want := range []string{"1", "2"} {
		select {
		case got := <-ch:
			if got.ID != want {
				t.Fatalf("expected event %s, got %s", want, got.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %s", want)
		}
	}
}

func TestCancelClosesChannel(t *testing.T) {
	hub := NewHub(8, logger.NewDefault("test"))
	ch, cancel := hub.Subscribe(1)

	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	// A second cancel must be harmless.
	cancel()
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	hub := NewHub(8, logger.NewDefault("test"))
	_, cancel := hub.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Three events into a one-slot channel nobody drains.
		hub.Publish(evt("1"), evt("2"), evt("3"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a lagging subscriber")
	}
}

func TestRecentKeepsNewestInOrder(t *testing.T) {
	hub := NewHub(3, logger.NewDefault("test"))
	hub.Publish(evt("1"), evt("2"), evt("3"), evt("4"))

	recent := hub.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("expected 3 buffered events, got %d", len(recent))
	}
	for i, want := range []string{"2", "3", "4"} {
		if recent[i].ID != want {
			t.Fatalf("recent[%d] = %s, want %s", i, recent[i].ID, want)
		}
	}

	last := hub.Recent(1)
	if len(last) != 1 || last[0].ID != "4" {
		t.Fatalf("expected newest event 4, got %+v", last)
	}
}
