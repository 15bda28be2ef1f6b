// Package recurrence watches classified failures for a root cause
// repeating within a lookback window, escalating to an urgent bus message
// when a propagated fix evidently did not hold.
package recurrence

import (
	"context"
	"fmt"
	"time"

	"github.com/cortexd/cortexd/internal/bus"
	"github.com/cortexd/cortexd/internal/infra/store"
)

// Detector checks each new failure against recent history for the same
// root cause.
type Detector struct {
	store    *store.Store
	bus      *bus.Bus
	lookback time.Duration
	// Threshold is the number of occurrences (inclusive of the current
	// one) within lookback that counts as a recurrence.
	Threshold int
	now       func() time.Time
}

// New constructs a Detector with a 7-day lookback and a 3-occurrence
// threshold.
func New(st *store.Store, b *bus.Bus) *Detector {
	return &Detector{store: st, bus: b, lookback: 7 * 24 * time.Hour, Threshold: 3, now: time.Now}
}

// Check looks at rootCause's history and, if it has recurred at least
// Threshold times within the lookback window, fires an urgent bus
// message. Returns the occurrence count observed.
func (d *Detector) Check(ctx context.Context, rootCause string) (int, error) {
	since := d.now().Add(-d.lookback)
	events, err := d.store.RecentFailuresByCause(rootCause, since)
	if err != nil {
		return 0, err
	}
	count := len(events)
	if count >= d.Threshold {
		body := fmt.Sprintf("root cause %q has recurred %d times in the last %s despite propagation", rootCause, count, d.lookback)
		if err := d.bus.Send("rtl.recurrence", body, bus.PriorityUrgent, rootCause); err != nil {
			return count, err
		}
	}
	return count, nil
}
