// Package atomprop turns a FailureEvent into a durable MemoryRecord so the
// knowledge-compression engine can later cluster and distill it alongside
// organically captured memories.
package atomprop

import (
	"time"

	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/store"
	"github.com/google/uuid"
)

// Propagator writes a MemoryRecord for every FailureEvent routed to the
// "atom" propagation target.
type Propagator struct {
	store *store.Store
	now   func() time.Time
}

func New(st *store.Store) *Propagator {
	return &Propagator{store: st, now: time.Now}
}

// Propagate inserts a new short-term memory record summarizing e, tagged
// with the "rtl" domain so compression can pick it up in later runs.
func (p *Propagator) Propagate(e domain.FailureEvent) error {
	content := e.RootCause + ": " + e.Message
	_, err := p.store.Run(
		`INSERT INTO memory_records (id, domain, content, importance, token_count, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), "rtl", content, 0.6, len(content)/4, p.now().Unix(),
	)
	return err
}
