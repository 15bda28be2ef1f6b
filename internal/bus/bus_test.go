package bus

import (
	"context"
	"sync"
	"testing"
)

func TestSendFansOutToSubscribers(t *testing.T) {
	b := New(nil)
	var mu sync.Mutex
	var got []string

	b.Subscribe("incident.detected", func(m Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m.Body)
	})
	b.Subscribe("incident.detected", func(m Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m.Body)
	})

	if err := b.Send("incident.detected", "disk full", PriorityAction, "inc-1"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
}

func TestSubscribePanicDoesNotBlockOthers(t *testing.T) {
	b := New(nil)
	delivered := false

	b.Subscribe("x", func(Message) { panic("boom") })
	b.Subscribe("x", func(Message) { delivered = true })

	if err := b.Send("x", "body", PriorityInfo, ""); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !delivered {
		t.Fatal("second subscriber should still have been delivered to")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(nil)
	count := 0
	unsub := b.Subscribe("x", func(Message) { count++ })

	b.Send("x", "one", PriorityInfo, "")
	unsub()
	b.Send("x", "two", PriorityInfo, "")

	if count != 1 {
		t.Fatalf("expected 1 delivery after unsubscribe, got %d", count)
	}
}

func TestSendTier3DeliversBothChannels(t *testing.T) {
	b := New(NoopChannel{})
	received := false
	b.Subscribe("escalate", func(Message) { received = true })

	if err := b.SendTier3(context.Background(), "escalate", "critical", "inc-2"); err != nil {
		t.Fatalf("SendTier3: %v", err)
	}
	if !received {
		t.Fatal("expected in-process subscriber to receive tier-3 message")
	}
}
