package compress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
	"github.com/cortexd/cortexd/internal/infra/store"
)

func TestClusterFinderGroupsSimilarMemories(t *testing.T) {
	finder := NewClusterFinder(ClusterConfig{MinMembers: 2, MaxMembers: 10, MinAvgSimilarity: 0.5})
	records := []domain.MemoryRecord{
		{ID: "a", Content: "deploy failed rollback triggered", TokenCount: 4},
		{ID: "b", Content: "deploy failed rollback triggered again", TokenCount: 5},
		{ID: "c", Content: "completely unrelated topic about lunch", TokenCount: 5},
	}

	clusters := finder.Find(records)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if len(clusters[0].MemberIDs) != 2 {
		t.Fatalf("expected 2 members, got %d", len(clusters[0].MemberIDs))
	}
}

func TestClusterFinderRejectsBelowMinMembers(t *testing.T) {
	finder := NewClusterFinder(ClusterConfig{MinMembers: 3, MaxMembers: 10, MinAvgSimilarity: 0.5})
	records := []domain.MemoryRecord{
		{ID: "a", Content: "deploy failed rollback triggered", TokenCount: 4},
		{ID: "b", Content: "deploy failed rollback triggered again", TokenCount: 5},
	}

	clusters := finder.Find(records)
	if len(clusters) != 0 {
		t.Fatalf("expected 0 clusters below MinMembers, got %d", len(clusters))
	}
}

func TestDistillRefusesLowRatio(t *testing.T) {
	d := NewDistiller(TemplateClient{MaxRunes: 10000}, 2.0)
	cluster := domain.Cluster{Fingerprint: "fp1", TotalTokens: 1}
	members := []domain.MemoryRecord{{ID: "a", Content: "short"}}

	dist, refusal, err := d.Distill(context.Background(), cluster, members)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dist != nil {
		t.Fatal("expected no distillation on refusal")
	}
	if refusal == nil {
		t.Fatal("expected a refusal for a summary no shorter than the source")
	}
}

func TestDistillSucceedsAboveRatio(t *testing.T) {
	d := NewDistiller(fixedClient{summary: "ok"}, 2.0)
	cluster := domain.Cluster{Fingerprint: "fp1", TotalTokens: 100}
	members := []domain.MemoryRecord{{ID: "a", Content: "a very long memory repeated many times over"}}

	dist, refusal, err := d.Distill(context.Background(), cluster, members)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refusal != nil {
		t.Fatalf("unexpected refusal: %v", refusal)
	}
	if dist.CompressionRatio != 100 {
		t.Fatalf("expected ratio 100 (100 tokens / 1 word summary), got %f", dist.CompressionRatio)
	}
}

type fixedClient struct{ summary string }

func (f fixedClient) Summarize(context.Context, string) (string, error) { return f.summary, nil }

func TestArchiveAndRollbackRestoresOriginalImportance(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	member := domain.MemoryRecord{
		ID: "mem-1", Domain: "ops", Content: "some content",
		Categories: []string{"deploy"}, Importance: 0.73, TokenCount: 5, CreatedAt: time.Now(),
	}
	if err := st.InsertCompressedMemory(member); err != nil {
		t.Fatalf("seed memory: %v", err)
	}

	archiver := NewArchiver(st)
	cluster := domain.Cluster{Fingerprint: "fp1", MemberIDs: []string{member.ID}}
	dist := domain.Distillation{Summary: "summary", CompressionRatio: 5, TokenCountBefore: 20, TokenCountAfter: 4}

	commit, err := archiver.Archive("ops", cluster, dist, []domain.MemoryRecord{member})
	if err != nil {
		t.Fatalf("archive: %v", err)
	}

	imp, err := st.GetMemoryImportance(member.ID)
	if err != nil {
		t.Fatalf("get importance: %v", err)
	}
	if imp != DowngradedImportance {
		t.Fatalf("expected downgraded importance %f, got %f", DowngradedImportance, imp)
	}

	compressed, err := st.GetMemoryRecord(commit.CompressedID)
	if err != nil {
		t.Fatalf("get compressed record: %v", err)
	}
	if compressed.Importance != 0.73 {
		t.Fatalf("expected compressed record to carry max member importance 0.73, got %f", compressed.Importance)
	}
	if len(compressed.CompressedFrom) != 1 || compressed.CompressedFrom[0] != member.ID {
		t.Fatalf("expected compressed_from to list the source member, got %v", compressed.CompressedFrom)
	}
	foundCompressedTag := false
	for _, c := range compressed.Categories {
		if c == "compressed" {
			foundCompressedTag = true
		}
	}
	if !foundCompressedTag {
		t.Fatalf("expected categories to include \"compressed\", got %v", compressed.Categories)
	}

	archiver.Rollback(commit)

	restored, err := st.GetMemoryImportance(member.ID)
	if err != nil {
		t.Fatalf("get importance after rollback: %v", err)
	}
	if restored != 0.73 {
		t.Fatalf("expected restored importance 0.73, got %f", restored)
	}

	if _, err := st.GetMemoryRecord(commit.CompressedID); !errors.Is(err, domain.ErrAtomNotFound) {
		t.Fatalf("expected compressed record deleted after rollback, got err=%v", err)
	}
}

func TestCompressorRunArchivesEligibleClusters(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	for i, content := range []string{
		"deploy failed rollback triggered on node one",
		"deploy failed rollback triggered on node two",
		"deploy failed rollback triggered on node three",
	} {
		id := "mem-" + string(rune('a'+i))
		rec := domain.MemoryRecord{
			ID: id, Domain: "ops", Content: content,
			Categories: []string{"deploy"}, Importance: 1.0, TokenCount: 8, CreatedAt: time.Now(),
		}
		if err := st.InsertCompressedMemory(rec); err != nil {
			t.Fatalf("seed memory: %v", err)
		}
	}

	finder := NewClusterFinder(ClusterConfig{MinMembers: 2, MaxMembers: 10, MinAvgSimilarity: 0.3})
	distiller := NewDistiller(fixedClient{summary: "short"}, 2.0)
	archiver := NewArchiver(st)
	compressor := NewCompressor(st, finder, distiller, archiver)

	report, err := compressor.Run(context.Background(), "ops")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ClustersFound != 1 {
		t.Fatalf("expected 1 cluster, got %d", report.ClustersFound)
	}
	if report.AtomsWritten != 1 {
		t.Fatalf("expected 1 atom written, got %d", report.AtomsWritten)
	}
}
