// Package soppatch resolves a FailureEvent's target SOP document and
// appends a dated, id-locked correction entry — or, for low-confidence
// tier-3 cases, only posts a diff preview without writing.
package soppatch

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cortexd/cortexd/internal/crossdomain/safepath"
	"github.com/cortexd/cortexd/internal/domain"
	"github.com/itchyny/gojq"
)

// Resolver locates the SOP file a FailureEvent's correction belongs in.
type Resolver struct {
	// RootCauseFiles maps a known root cause to a conventional SOP path.
	RootCauseFiles map[string]string
	// Fallback is used when neither the context lookup nor the root
	// cause table resolves a target.
	Fallback string
	// safe validates any SOP path sourced from a FailureEvent's context —
	// the root-cause table and Fallback are built from trusted config and
	// never pass through it.
	safe *safepath.Validator
}

// NewResolver builds a Resolver with the standard root-cause table.
// protectedPaths are rejected outright even if they fall within sopDir
// (typically the store's own database file).
func NewResolver(sopDir string, protectedPaths ...string) *Resolver {
	return &Resolver{
		RootCauseFiles: map[string]string{
			"tool_timeout":     filepath.Join(sopDir, "tool-reliability.md"),
			"tool_error":       filepath.Join(sopDir, "tool-reliability.md"),
			"user_correction":  filepath.Join(sopDir, "corrections.md"),
			"pipeline_failure": filepath.Join(sopDir, "pipeline-health.md"),
		},
		Fallback: filepath.Join(sopDir, "corrections.md"),
		safe:     safepath.New(sopDir, protectedPaths...),
	}
}

// Resolve picks the target SOP file for e: first by querying
// e.Context["sop_file"] via gojq, then by root-cause table, then the
// fallback. A context-sourced path must pass safepath validation — it
// can name any file under the SOP tree but never escape it.
func (r *Resolver) Resolve(e domain.FailureEvent) (string, error) {
	if path, ok := r.fromContext(e); ok {
		clean, err := r.safe.Check(path)
		if err != nil {
			return "", fmt.Errorf("sop_file from context rejected: %w", err)
		}
		return clean, nil
	}
	if path, ok := r.RootCauseFiles[e.RootCause]; ok {
		return path, nil
	}
	return r.Fallback, nil
}

func (r *Resolver) fromContext(e domain.FailureEvent) (string, bool) {
	if e.Context == nil {
		return "", false
	}
	query, err := gojq.Parse(".sop_file")
	if err != nil {
		return "", false
	}
	iter := query.Run(e.Context)
	v, ok := iter.Next()
	if !ok {
		return "", false
	}
	if err, isErr := v.(error); isErr {
		_ = err
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Writer appends dated correction entries and, for tiers that auto-commit,
// shells out to git. A commit failure is returned separately from a write
// failure and is non-fatal — the write to the SOP file itself already
// succeeded.
type Writer struct {
	GitDir string
	now    func() time.Time
}

func NewWriter(gitDir string) *Writer {
	return &Writer{GitDir: gitDir, now: time.Now}
}

// Append writes a dated, id-locked entry to path and, when autoCommit is
// true, commits the change.
func (w *Writer) Append(path string, e domain.FailureEvent, autoCommit bool) (commitErr error, writeErr error) {
	entry := fmt.Sprintf("\n## %s — %s\n\n- id: %s\n- root cause: %s\n- %s\n",
		w.now().Format("2006-01-02"), e.RootCause, e.ID, e.RootCause, e.Message)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := f.WriteString(entry); err != nil {
		return nil, err
	}

	if !autoCommit {
		return nil, nil
	}
	cmd := exec.Command("git", "-C", w.GitDir, "commit", "-am", "rtl: "+e.RootCause+" ("+e.ID+")")
	if err := cmd.Run(); err != nil {
		return err, nil
	}
	return nil, nil
}

// PreviewDiff renders the would-be entry without writing — the tier-3
// path, which only ever posts a preview to the bus.
func (w *Writer) PreviewDiff(e domain.FailureEvent) string {
	return fmt.Sprintf("+ ## %s — %s\n+ - id: %s\n+ - %s\n", w.now().Format("2006-01-02"), e.RootCause, e.ID, e.Message)
}
