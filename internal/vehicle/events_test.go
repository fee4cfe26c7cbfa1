package vehicle

import (
	"fmt"
	"testing"
)

func TestTextBroker_NoEventsLostBetweenPolls(t *testing.T) {
	var broker TextBroker
	sub := broker.Subscribe()

	// Publish a burst before the subscriber polls at all.
	for i := 0; i < 5; i++ {
		broker.Publish(fmt.Sprintf("event %d", i))
	}

	for i := 0; i < 5; i++ {
		text, ok := sub.Next()
		if !ok {
			t.Fatalf("Expected queued event %d, queue was empty", i)
		}
		if expected := fmt.Sprintf("event %d", i); text != expected {
			t.Errorf("Expected %q, got %q", expected, text)
		}
	}

	if _, ok := sub.Next(); ok {
		t.Error("Expected empty queue after draining all events")
	}
}

func TestTextBroker_FanOut(t *testing.T) {
	var broker TextBroker
	a := broker.Subscribe()
	b := broker.Subscribe()

	broker.Publish("Engine out")

	for name, sub := range map[string]*TextSubscription{"a": a, "b": b} {
		text, ok := sub.Next()
		if !ok || text != "Engine out" {
			t.Errorf("Subscription %s: expected event, got %q ok=%v", name, text, ok)
		}
	}
}

func TestTextSubscription_Drain(t *testing.T) {
	var broker TextBroker
	sub := broker.Subscribe()

	if sub.Drain() != nil {
		t.Error("Drain on empty subscription should return nil")
	}

	broker.Publish("one")
	broker.Publish("two")

	drained := sub.Drain()
	if len(drained) != 2 || drained[0] != "one" || drained[1] != "two" {
		t.Errorf("Unexpected drain result: %v", drained)
	}
	if sub.Len() != 0 {
		t.Errorf("Expected empty queue after drain, length %d", sub.Len())
	}
}

func TestTextBroker_CloseAll(t *testing.T) {
	var broker TextBroker
	sub := broker.Subscribe()
	broker.Publish("before close")
	broker.CloseAll()

	if _, ok := sub.Next(); ok {
		t.Error("Expected closed subscription to be empty")
	}

	broker.Publish("after close")
	if sub.Len() != 0 {
		t.Error("Publish after close must not queue events")
	}
}
