package events

import (
	"testing"
	"time"
)

func TestBus_PublishFansOutToAllSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch1, unsub1 := bus.Subscribe(4)
	defer unsub1()
	ch2, unsub2 := bus.Subscribe(4)
	defer unsub2()

	bus.Publish(ReadyEvent{Time: time.Unix(1, 0)})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Kind() != KindReady {
				t.Fatalf("expected a ready event, got %q", ev.Kind())
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(1)
	unsubscribe()

	_, ok := <-ch
	if ok {
		t.Fatal("expected the channel to be closed after unsubscribe")
	}
}

func TestBus_FullSubscriberBufferDropsRatherThanBlocks(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	_, unsubscribe := bus.Subscribe(1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		bus.Publish(ReadyEvent{})
		bus.Publish(ReadyEvent{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}

func TestBus_CloseClosesAllSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch1, _ := bus.Subscribe(1)
	ch2, _ := bus.Subscribe(1)
	bus.Close()

	for _, ch := range []<-chan Event{ch1, ch2} {
		if _, ok := <-ch; ok {
			t.Fatal("expected channel to be closed after Bus.Close")
		}
	}
}
