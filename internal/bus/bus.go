// Package bus implements Synapse, the in-process message bus shared by
// every supervisory-plane subsystem. Delivery is synchronous fan-out to
// in-process subscribers; a pluggable GuaranteedChannel backs the separate
// tier-3 "external guaranteed delivery" path.
package bus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cortexd/cortexd/internal/infra/metrics"
)

// Priority orders bus messages for subscribers that care about urgency.
type Priority string

const (
	PriorityInfo   Priority = "info"
	PriorityAction Priority = "action"
	PriorityUrgent Priority = "urgent"
)

// Message is one item delivered to subscribers.
type Message struct {
	Subject  string
	Body     string
	Priority Priority
	ThreadID string
	At       time.Time
}

// GuaranteedChannel is the external delivery path used for tier-3
// escalations. The default implementation (NoopChannel) discards every
// message; a Redis pub/sub-backed implementation (RedisChannel, in
// redischan.go) is available for deployments that want an external
// channel.
type GuaranteedChannel interface {
	Deliver(ctx context.Context, msg Message) error
}

// NoopChannel discards guaranteed-delivery messages without delivering
// or logging them — the default when no external channel is configured.
type NoopChannel struct{}

func (NoopChannel) Deliver(ctx context.Context, msg Message) error { return nil }

// Bus is Synapse: synchronous in-process pub/sub plus an optional
// guaranteed external channel.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]func(Message)
	guaranteed  GuaranteedChannel
	now         func() time.Time
}

// New constructs a Bus. guaranteed may be nil, in which case NoopChannel
// is used.
func New(guaranteed GuaranteedChannel) *Bus {
	if guaranteed == nil {
		guaranteed = NoopChannel{}
	}
	return &Bus{
		subscribers: make(map[string][]func(Message)),
		guaranteed:  guaranteed,
		now:         time.Now,
	}
}

// Subscribe registers fn to receive every message sent to subject.
// The returned func unsubscribes.
func (b *Bus) Subscribe(subject string, fn func(Message)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[subject] = append(b.subscribers[subject], fn)
	idx := len(b.subscribers[subject]) - 1

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[subject]
		if idx < len(subs) {
			subs[idx] = nil
		}
	}
}

// Send fans out msg synchronously to every in-process subscriber of
// msg.Subject. A panicking subscriber does not prevent delivery to the
// others.
func (b *Bus) Send(subject, body string, priority Priority, threadID string) error {
	msg := Message{Subject: subject, Body: body, Priority: priority, ThreadID: threadID, At: b.now()}

	b.mu.RLock()
	subs := append([]func(Message){}, b.subscribers[subject]...)
	b.mu.RUnlock()

	for _, fn := range subs {
		if fn == nil {
			continue
		}
		b.deliverOne(fn, msg)
	}

	metrics.BusMessages.WithLabelValues(subject, string(priority)).Inc()
	return nil
}

func (b *Bus) deliverOne(fn func(Message), msg Message) {
	defer func() { recover() }()
	fn(msg)
}

// SendGuaranteed delivers msg through the configured external channel
// only, independent of in-process subscribers.
func (b *Bus) SendGuaranteed(ctx context.Context, msg Message) error {
	if msg.At.IsZero() {
		msg.At = b.now()
	}
	return b.guaranteed.Deliver(ctx, msg)
}

// SendTier3 fires both the in-process fan-out and the guaranteed channel
// concurrently. Either failing does not cancel the other; both errors are
// joined.
func (b *Bus) SendTier3(ctx context.Context, subject, body, threadID string) error {
	var wg sync.WaitGroup
	var inProcErr, guaranteedErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		inProcErr = b.Send(subject, body, PriorityUrgent, threadID)
	}()
	go func() {
		defer wg.Done()
		guaranteedErr = b.SendGuaranteed(ctx, Message{Subject: subject, Body: body, Priority: PriorityUrgent, ThreadID: threadID})
	}()
	wg.Wait()

	return errors.Join(inProcErr, guaranteedErr)
}
