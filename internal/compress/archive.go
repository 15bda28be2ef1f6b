package compress

import (
	"sort"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/metrics"
	"github.com/cortexd/cortexd/internal/infra/store"
	"github.com/google/uuid"
)

// DowngradedImportance is what a cluster member's importance is set to
// once it has been absorbed into a compressed record — it is not deleted
// outright so the record remains queryable, just deprioritized.
const DowngradedImportance = 0.5

// topCategories returns the n most frequent categories across members,
// ties broken by first appearance, for the compressed record's own
// category tag set.
func topCategories(members []domain.MemoryRecord, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, m := range members {
		for _, c := range m.Categories {
			if _, seen := counts[c]; !seen {
				order = append(order, c)
			}
			counts[c]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// Archiver commits a Distillation as a compressed short-term-memory row
// and downgrades its source members, with an explicit rollback path.
// There is no real database transaction here — each step is a separate
// write, and Rollback issues the compensating writes in reverse order,
// mirroring how the teacher's credit ledger handled partial failure.
type Archiver struct {
	store *store.Store
	now   func() time.Time
}

func NewArchiver(st *store.Store) *Archiver {
	return &Archiver{store: st, now: time.Now}
}

// Commitment records what Archive did, so Rollback knows exactly what to
// undo if verification fails downstream.
type Commitment struct {
	CompressedID      string
	AtomID            string // empty unless an enrichment Atom was also written
	downgradedMembers map[string]float64 // memberID -> originalImportance
}

// Archive is the compression Writer contract (spec §4.7): it always
// inserts a compressed MemoryRecord carrying the distillation's summary,
// the union of its members' most common categories plus "compressed",
// the highest importance among its members, and the member IDs it was
// compressed from. Every source member is then downgraded in turn,
// capturing its prior value for rollback. Atom enrichment is a separate,
// optional step the caller may perform afterward — Archive itself never
// requires an LLM-extracted causal shape to exist.
func (a *Archiver) Archive(domainName string, cluster domain.Cluster, dist domain.Distillation, members []domain.MemoryRecord) (Commitment, error) {
	compressedID := "STM-" + uuid.NewString()
	now := a.now()

	maxImportance := 0.0
	for _, m := range members {
		if m.Importance > maxImportance {
			maxImportance = m.Importance
		}
	}

	categories := append(topCategories(members, 2), "compressed")

	compressed := domain.MemoryRecord{
		ID:             compressedID,
		Domain:         domainName,
		Content:        dist.Summary,
		Categories:     categories,
		Importance:     maxImportance,
		TokenCount:     dist.TokenCountAfter,
		CreatedAt:      now,
		CompressedFrom: cluster.MemberIDs,
	}

	if err := a.store.InsertCompressedMemory(compressed); err != nil {
		return Commitment{}, err
	}

	commit := Commitment{CompressedID: compressedID, downgradedMembers: make(map[string]float64, len(cluster.MemberIDs))}

	for _, memberID := range cluster.MemberIDs {
		original, err := a.store.GetMemoryImportance(memberID)
		if err != nil {
			a.Rollback(commit)
			return Commitment{}, err
		}
		if err := a.store.DowngradeMemoryImportance(memberID, DowngradedImportance, compressedID); err != nil {
			a.Rollback(commit)
			return Commitment{}, err
		}
		commit.downgradedMembers[memberID] = original
	}

	metrics.CompressionRatio.Observe(dist.CompressionRatio)
	return commit, nil
}

// EnrichAtom writes an optional causal Atom derived from the same
// distillation, linking it to the compressed record via commit. A
// failure here does not undo the compressed record itself — enrichment
// is additive, not part of the Writer contract's guarantee.
func (a *Archiver) EnrichAtom(commit *Commitment, atom domain.Atom) error {
	if atom.ID == "" {
		atom.ID = "ATOM-" + uuid.NewString()
	}
	if atom.CreatedAt.IsZero() {
		atom.CreatedAt = a.now()
	}
	if err := a.store.InsertAtom(atom); err != nil {
		return err
	}
	commit.AtomID = atom.ID
	return nil
}

// Rollback restores every downgraded member to its captured original
// importance (Open Question: restore the captured value, not a
// hardcoded default — a member that started below the standard baseline
// must not be artificially boosted by a failed compression attempt),
// deletes the compressed record, and deletes the enrichment atom if one
// was written.
func (a *Archiver) Rollback(commit Commitment) {
	for memberID, original := range commit.downgradedMembers {
		_ = a.store.RestoreMemoryImportance(memberID, original)
	}
	if commit.CompressedID != "" {
		_ = a.store.DeleteMemoryRecord(commit.CompressedID)
	}
	if commit.AtomID != "" {
		_ = a.store.DeleteAtom(commit.AtomID)
	}
	metrics.CompressionRollbacks.Inc()
}
