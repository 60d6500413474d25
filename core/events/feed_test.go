package events

import (
	"testing"

	"seasonfarm/core/types"
)

func TestFeedDeliversToSubscribers(t *testing.T) {
	feed := NewFeed()
	ch, cancel := feed.Subscribe(4)
	defer cancel()

	feed.Emit(Wrap(&types.Event{Type: "farm.test"}))

	select {
	case evt := <-ch:
		if evt.EventType() != "farm.test" {
			t.Fatalf("unexpected event type %q", evt.EventType())
		}
	default:
		t.Fatalf("expected buffered event")
	}
}

func TestFeedDropsWhenSubscriberFull(t *testing.T) {
	feed := NewFeed()
	_, cancel := feed.Subscribe(1)
	defer cancel()

	feed.Emit(Wrap(&types.Event{Type: "a"}))
	feed.Emit(Wrap(&types.Event{Type: "b"}))

	if feed.Dropped() != 1 {
		t.Fatalf("expected one dropped delivery, got %d", feed.Dropped())
	}
}

func TestFeedCancelIsIdempotent(t *testing.T) {
	feed := NewFeed()
	ch, cancel := feed.Subscribe(1)
	cancel()
	cancel()
	if feed.Subscribers() != 0 {
		t.Fatalf("expected no subscribers")
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	feed.Emit(Wrap(&types.Event{Type: "after"}))
}

func TestMultiSkipsNilEmitters(t *testing.T) {
	feed := NewFeed()
	ch, cancel := feed.Subscribe(1)
	defer cancel()
	Multi{nil, NoopEmitter{}, feed}.Emit(Wrap(&types.Event{Type: "x"}))
	if len(ch) != 1 {
		t.Fatalf("expected feed to receive event")
	}
}
