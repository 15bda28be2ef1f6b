package soppatch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cortexd/cortexd/internal/domain"
)

func TestResolveFromRootCauseTable(t *testing.T) {
	sopDir := t.TempDir()
	r := NewResolver(sopDir)

	path, err := r.Resolve(domain.FailureEvent{RootCause: "tool_timeout"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if path != filepath.Join(sopDir, "tool-reliability.md") {
		t.Fatalf("got %q", path)
	}
}

func TestResolveFallsBackWhenRootCauseUnknown(t *testing.T) {
	sopDir := t.TempDir()
	r := NewResolver(sopDir)

	path, err := r.Resolve(domain.FailureEvent{RootCause: "something_unmapped"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if path != r.Fallback {
		t.Fatalf("got %q, want fallback %q", path, r.Fallback)
	}
}

func TestResolveFromContextWithinSOPDir(t *testing.T) {
	sopDir := t.TempDir()
	r := NewResolver(sopDir)

	e := domain.FailureEvent{
		RootCause: "tool_timeout",
		Context:   map[string]any{"sop_file": filepath.Join(sopDir, "custom.md")},
	}
	path, err := r.Resolve(e)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if path != filepath.Join(sopDir, "custom.md") {
		t.Fatalf("got %q", path)
	}
}

func TestResolveRejectsContextPathEscapingSOPDir(t *testing.T) {
	sopDir := t.TempDir()
	r := NewResolver(sopDir)

	e := domain.FailureEvent{
		Context: map[string]any{"sop_file": "/etc/passwd"},
	}
	if _, err := r.Resolve(e); err == nil {
		t.Fatal("expected rejection of path outside SOP dir")
	}
}

func TestResolveRejectsProtectedStorePath(t *testing.T) {
	sopDir := t.TempDir()
	dbPath := filepath.Join(sopDir, "cortex.db")
	r := NewResolver(sopDir, dbPath)

	e := domain.FailureEvent{
		Context: map[string]any{"sop_file": dbPath},
	}
	if _, err := r.Resolve(e); err == nil {
		t.Fatal("expected rejection of protected store path")
	}
}

func TestResolveRejectsShellMetacharacters(t *testing.T) {
	sopDir := t.TempDir()
	r := NewResolver(sopDir)

	e := domain.FailureEvent{
		Context: map[string]any{"sop_file": filepath.Join(sopDir, "a.md; rm -rf /")},
	}
	if _, err := r.Resolve(e); err == nil {
		t.Fatal("expected rejection of path with shell metacharacters")
	}
}

func TestWriterAppendWritesDatedEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrections.md")
	w := NewWriter(dir)

	_, writeErr := w.Append(path, domain.FailureEvent{ID: "evt-1", RootCause: "tool_error", Message: "timeout on fetch"}, false)
	if writeErr != nil {
		t.Fatalf("Append: %v", writeErr)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(body), "evt-1") {
		t.Fatalf("entry missing id: %s", body)
	}
}

func TestPreviewDiffDoesNotWrite(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	diff := w.PreviewDiff(domain.FailureEvent{ID: "evt-2", RootCause: "pipeline_failure", Message: "stalled"})
	if !strings.Contains(diff, "evt-2") {
		t.Fatalf("preview missing id: %s", diff)
	}
	if _, err := os.Stat(filepath.Join(dir, "corrections.md")); !os.IsNotExist(err) {
		t.Fatal("PreviewDiff should not write to disk")
	}
}
