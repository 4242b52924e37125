package broadcast

import (
	"sync"
	"testing"
)

func collect(t *testing.T) (Subscriber, func() []Event) {
	t.Helper()
	var mu sync.Mutex
	var events []Event
	fn := func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}
	snapshot := func() []Event {
		mu.Lock()
		defer mu.Unlock()
		out := make([]Event, len(events))
		copy(out, events)
		return out
	}
	return fn, snapshot
}

func TestEmitFansOutToAllSubscribers(t *testing.T) {
	r := NewRegistry()
	fn1, got1 := collect(t)
	fn2, got2 := collect(t)
	r.Subscribe("job-1", fn1)
	r.Subscribe("job-1", fn2)
	r.Activate("job-1")

	r.Emit("job-1", NewSummary("partial text"))
	r.Emit("job-1", NewComplete())

	for i, got := range [][]Event{got1(), got2()} {
		if len(got) != 2 {
			t.Fatalf("subscriber %d: expected 2 events, got %d", i, len(got))
		}
		if got[0].EventType() != "summary" || got[1].EventType() != "complete" {
			t.Fatalf("subscriber %d: unexpected order %s, %s", i, got[0].EventType(), got[1].EventType())
		}
	}
}

func TestEmitWithoutActivationIsNoOp(t *testing.T) {
	r := NewRegistry()
	fn, got := collect(t)
	r.Subscribe("job-1", fn)

	r.Emit("job-1", NewSummary("text"))

	if len(got()) != 0 {
		t.Fatalf("expected no delivery before activation, got %d events", len(got()))
	}
}

func TestEmitToUnknownJobIsNoOp(t *testing.T) {
	r := NewRegistry()
	r.Emit("missing", NewComplete())
}

func TestPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("job-1", func(Event) { panic("boom") })
	fn, got := collect(t)
	r.Subscribe("job-1", fn)
	r.Activate("job-1")

	r.Emit("job-1", NewDelay(50))

	if len(got()) != 1 {
		t.Fatalf("expected healthy subscriber to receive the event, got %d", len(got()))
	}
}

func TestStopDeliversStoppedOnceAndRemovesChannel(t *testing.T) {
	r := NewRegistry()
	fn, got := collect(t)
	r.Subscribe("job-1", fn)
	r.Activate("job-1")

	r.Stop("job-1", "Analysis stopped by user")

	events := got()
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}
	stopped, ok := events[0].(StoppedEvent)
	if !ok {
		t.Fatalf("expected StoppedEvent, got %T", events[0])
	}
	if stopped.Message != "Analysis stopped by user" {
		t.Fatalf("unexpected message %q", stopped.Message)
	}
	if r.IsActive("job-1") {
		t.Fatalf("expected channel inactive after stop")
	}

	// Emits after stop reach nobody.
	r.Emit("job-1", NewComplete())
	if len(got()) != 1 {
		t.Fatalf("expected no delivery after stop")
	}
}

func TestStopUnknownJobIsNoOp(t *testing.T) {
	r := NewRegistry()
	r.Stop("missing", "whatever")
}

func TestUnsubscribeDetachesSingleSubscriber(t *testing.T) {
	r := NewRegistry()
	fn1, got1 := collect(t)
	fn2, got2 := collect(t)
	sub1 := r.Subscribe("job-1", fn1)
	r.Subscribe("job-1", fn2)
	r.Activate("job-1")

	r.Unsubscribe(sub1)
	r.Emit("job-1", NewSummary("text"))

	if len(got1()) != 0 {
		t.Fatalf("detached subscriber still receiving")
	}
	if len(got2()) != 1 {
		t.Fatalf("remaining subscriber missed the event")
	}
}

func TestReleaseRemovesOnlyIdleChannels(t *testing.T) {
	r := NewRegistry()
	r.Activate("idle")
	r.Release("idle")
	if r.IsActive("idle") {
		t.Fatalf("expected idle channel removed")
	}

	fn, _ := collect(t)
	r.Subscribe("busy", fn)
	r.Activate("busy")
	r.Release("busy")
	if !r.IsActive("busy") {
		t.Fatalf("expected channel with a subscriber to survive release")
	}
}

func TestIsActiveLifecycle(t *testing.T) {
	r := NewRegistry()
	if r.IsActive("job-1") {
		t.Fatalf("unknown job must not be active")
	}
	r.Activate("job-1")
	if !r.IsActive("job-1") {
		t.Fatalf("expected active after Activate")
	}
	r.UnsubscribeAll("job-1")
	if r.IsActive("job-1") {
		t.Fatalf("expected inactive after UnsubscribeAll")
	}
}

func TestDetachAfterRunReclaimsChannel(t *testing.T) {
	r := NewRegistry()
	fn, _ := collect(t)
	sub := r.Subscribe("job-1", fn)
	r.Activate("job-1")
	r.Release("job-1")
	r.Unsubscribe(sub)

	if r.IsActive("job-1") {
		t.Fatalf("channel still active with no run and no subscribers")
	}
	r.mu.RLock()
	_, ok := r.channels["job-1"]
	r.mu.RUnlock()
	if ok {
		t.Fatalf("channel still registered with no run and no subscribers")
	}
}

func TestDetachDuringRunKeepsChannel(t *testing.T) {
	r := NewRegistry()
	fn, _ := collect(t)
	sub := r.Subscribe("job-1", fn)
	r.Activate("job-1")

	r.Unsubscribe(sub)
	if !r.IsActive("job-1") {
		t.Fatalf("detach removed the channel of an in-flight run")
	}

	r.Release("job-1")
	r.mu.RLock()
	_, ok := r.channels["job-1"]
	r.mu.RUnlock()
	if ok {
		t.Fatalf("channel survived the end of an unwatched run")
	}
}

func TestSubscribeToUnknownJobDoesNotLeak(t *testing.T) {
	r := NewRegistry()
	fn, _ := collect(t)
	sub := r.Subscribe("never-ran", fn)
	r.Unsubscribe(sub)

	r.mu.RLock()
	n := len(r.channels)
	r.mu.RUnlock()
	if n != 0 {
		t.Fatalf("registry holds %d channels after the only watcher left", n)
	}
}
