package compress

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cortexd/cortexd/internal/infra/store"
)

// RunReport is the result handed back to callers (the CLI's compress
// command, the daemon's scheduled pass) after a compression pass. JSON
// renders it as indented JSON; persist stores only its counters as a
// compression-run row, and no JSON artifact file is written.
type RunReport struct {
	RunID         string    `json:"run_id"`
	Domain        string    `json:"domain"`
	ClustersFound int       `json:"clusters_found"`
	AtomsWritten  int       `json:"atoms_written"`
	Refusals      []string  `json:"refusals"`
	Rollbacks     int       `json:"rollbacks"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// JSON renders the report as indented JSON.
func (r RunReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Summary renders a short human-readable line, the kind a CLI command
// prints on completion.
func (r RunReport) Summary() string {
	return fmt.Sprintf("compression run %s (%s): %d clusters, %d atoms written, %d refused, %d rolled back in %s",
		r.RunID, r.Domain, r.ClustersFound, r.AtomsWritten, len(r.Refusals), r.Rollbacks, r.FinishedAt.Sub(r.StartedAt))
}

// persist writes the run's counters to the store for later inspection.
func (r RunReport) persist(st *store.Store) error {
	return st.InsertCompressionRun(store.CompressionRunSummary{
		RunID:         r.RunID,
		ClustersFound: r.ClustersFound,
		AtomsWritten:  r.AtomsWritten,
		Refusals:      len(r.Refusals),
		Rollbacks:     r.Rollbacks,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	})
}
