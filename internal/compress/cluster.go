// Package compress implements the knowledge-compression engine: cluster
// discovery over short-term memories, LLM-assisted distillation behind a
// compression-ratio gate, and a writer/archiver whose atomicity is
// hand-rolled compensating writes rather than a real SQL transaction.
package compress

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/cortexd/cortexd/internal/domain"
)

// ClusterConfig bounds what counts as a valid cluster.
type ClusterConfig struct {
	MinMembers       int
	MaxMembers       int
	MinAvgSimilarity float64
}

func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{MinMembers: 3, MaxMembers: 25, MinAvgSimilarity: 0.35}
}

// ClusterFinder groups MemoryRecords by Jaccard similarity over tokenized
// content — no embedding backend is in scope, so similarity is lexical.
type ClusterFinder struct {
	cfg ClusterConfig
}

func NewClusterFinder(cfg ClusterConfig) *ClusterFinder {
	return &ClusterFinder{cfg: cfg}
}

// Find groups records into clusters meeting the configured thresholds.
// Greedy: each unclustered record seeds a cluster, then every other
// unclustered record above MinAvgSimilarity with the seed joins, capped
// at MaxMembers.
func (f *ClusterFinder) Find(records []domain.MemoryRecord) []domain.Cluster {
	tokenSets := make([]map[string]struct{}, len(records))
	for i, r := range records {
		tokenSets[i] = tokenize(r.Content)
	}

	used := make([]bool, len(records))
	var clusters []domain.Cluster

	for i := range records {
		if used[i] {
			continue
		}
		members := []int{i}
		used[i] = true
		simSum := 0.0

		for j := i + 1; j < len(records); j++ {
			if used[j] || len(members) >= f.cfg.MaxMembers {
				continue
			}
			sim := jaccard(tokenSets[i], tokenSets[j])
			if sim >= f.cfg.MinAvgSimilarity {
				members = append(members, j)
				used[j] = true
				simSum += sim
			}
		}

		if len(members) < f.cfg.MinMembers {
			// Not enough support to form a cluster; release members back
			// to the unclustered pool.
			for _, m := range members {
				used[m] = false
			}
			continue
		}

		avgSim := 0.0
		if len(members) > 1 {
			avgSim = simSum / float64(len(members)-1)
		}

		ids := make([]string, len(members))
		tokens := 0
		for k, m := range members {
			ids[k] = records[m].ID
			tokens += records[m].TokenCount
		}
		sort.Strings(ids)

		clusters = append(clusters, domain.Cluster{
			Fingerprint:   fingerprint(ids),
			MemberIDs:     ids,
			AvgSimilarity: avgSim,
			TotalTokens:   tokens,
		})
	}

	return clusters
}

func fingerprint(sortedIDs []string) string {
	h := sha256.Sum256([]byte(strings.Join(sortedIDs, "|")))
	return hex.EncodeToString(h[:])[:16]
}

func tokenize(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
