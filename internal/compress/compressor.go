package compress

import (
	"context"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/store"
	"github.com/google/uuid"
)

// Compressor runs one end-to-end compression pass for a domain: find
// clusters, distill each, archive the ones that clear the ratio gate,
// and roll back any that fail a post-archive verification.
type Compressor struct {
	store    *store.Store
	finder   *ClusterFinder
	distill  *Distiller
	archive  *Archiver
	now      func() time.Time

	// Verify, if set, runs after a compressed record is archived and
	// before it is counted as final. A non-nil error triggers a
	// rollback — this is where a caller can wire a sanity check (e.g.
	// the summary still references every root cause the members did)
	// without the Archiver itself needing to know about domain-specific
	// checks.
	Verify func(domain.MemoryRecord) error
}

func NewCompressor(st *store.Store, finder *ClusterFinder, distiller *Distiller, archiver *Archiver) *Compressor {
	return &Compressor{store: st, finder: finder, distill: distiller, archive: archiver, now: time.Now}
}

// Run compresses every eligible cluster found in domainName and returns
// a report of what happened. A failure distilling or archiving one
// cluster does not abort the run; the pass continues to the next
// cluster. Such failures are not recorded in the report, which holds
// only policy refusals (Refusals) and verification rollbacks (Rollbacks).
func (c *Compressor) Run(ctx context.Context, domainName string) (RunReport, error) {
	report := RunReport{RunID: "RUN-" + uuid.NewString(), Domain: domainName, StartedAt: c.now()}

	records, err := c.store.ListEligibleMemories(domainName)
	if err != nil {
		report.FinishedAt = c.now()
		return report, err
	}

	byID := make(map[string]domain.MemoryRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	clusters := c.finder.Find(records)
	report.ClustersFound = len(clusters)

	for _, cluster := range clusters {
		members := make([]domain.MemoryRecord, 0, len(cluster.MemberIDs))
		for _, id := range cluster.MemberIDs {
			if m, ok := byID[id]; ok {
				members = append(members, m)
			}
		}

		dist, refusal, err := c.distill.Distill(ctx, cluster, members)
		if err != nil {
			continue
		}
		if refusal != nil {
			report.Refusals = append(report.Refusals, refusal.String())
			continue
		}

		commit, err := c.archive.Archive(domainName, cluster, *dist, members)
		if err != nil {
			continue
		}

		if c.Verify != nil {
			compressed, err := c.store.GetMemoryRecord(commit.CompressedID)
			if err == nil {
				if verr := c.Verify(*compressed); verr != nil {
					c.archive.Rollback(commit)
					report.Rollbacks++
					continue
				}
			}
		}

		report.AtomsWritten++
	}

	report.FinishedAt = c.now()
	_ = report.persist(c.store)
	return report, nil
}
