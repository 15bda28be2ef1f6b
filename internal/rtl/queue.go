// Package rtl implements the real-time learning pipeline: five detection
// relays feed a bounded queue, a single drain loop classifies and
// propagates each detection, and a recurrence tracker watches for repeat
// root causes.
package rtl

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/metrics"
	"golang.org/x/time/rate"
)

// Queue is the bounded, non-blocking detection queue. Enqueue never
// suspends the caller: past capacity, the payload is dropped and counted
// rather than applying back-pressure to the relay.
type Queue struct {
	ch      chan domain.DetectionPayload
	dropped atomic.Int64
	limiter *rate.Limiter
}

// NewQueue builds a Queue with the given capacity. rps/burst rate-limit
// the correction-scanner relay specifically (see Queue.EnqueueLimited)
// so a burst of user messages cannot starve the rest of the queue.
func NewQueue(capacity int, rps float64, burst int) *Queue {
	return &Queue{
		ch:      make(chan domain.DetectionPayload, capacity),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Enqueue attempts a non-blocking send. Returns false if the queue was at
// capacity (the payload was dropped).
func (q *Queue) Enqueue(p domain.DetectionPayload) bool {
	select {
	case q.ch <- p:
		metrics.RTLQueueDepth.Set(float64(len(q.ch)))
		return true
	default:
		q.dropped.Add(1)
		metrics.RTLDropped.Inc()
		return false
	}
}

// EnqueueLimited is Enqueue gated by the shared rate limiter — used by the
// correction-scanner relay, the one source prone to bursts.
func (q *Queue) EnqueueLimited(p domain.DetectionPayload) bool {
	if !q.limiter.Allow() {
		q.dropped.Add(1)
		metrics.RTLDropped.Inc()
		return false
	}
	return q.Enqueue(p)
}

// Dropped returns the total number of payloads dropped since creation.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }

// Drain runs handle for every payload until ctx is cancelled. A panic in
// handle is recovered so one bad detection never silently stalls the
// queue.
func (q *Queue) Drain(ctx context.Context, handle func(domain.DetectionPayload)) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case p := <-q.ch:
			metrics.RTLQueueDepth.Set(float64(len(q.ch)))
			wg.Add(1)
			func() {
				defer wg.Done()
				defer func() { recover() }()
				handle(p)
			}()
		}
	}
}
