package compress

import (
	"context"
	"fmt"
	"strings"

	"github.com/cortexd/cortexd/internal/domain"
	"github.com/go-playground/validator/v10"
)

var distillValidate = validator.New()

// llmOutput is the boundary shape checked before an LLM summary is
// trusted enough to archive — a model that returns an empty or
// absurdly long summary is rejected here rather than three steps
// downstream in the archiver.
type llmOutput struct {
	Summary string `validate:"required,max=8000"`
}

// LLMClient is the minimal surface the distiller needs from a language
// model backend. No concrete provider is wired in this build; callers
// inject a real client (or a template-based stub) at the daemon layer.
type LLMClient interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// TemplateClient is a dependency-free LLMClient that concatenates and
// truncates rather than calling out to a model — used where no provider
// is configured, so the pipeline still runs end to end.
type TemplateClient struct {
	MaxRunes int
}

func (c TemplateClient) Summarize(_ context.Context, prompt string) (string, error) {
	max := c.MaxRunes
	if max <= 0 {
		max = 400
	}
	r := []rune(prompt)
	if len(r) <= max {
		return prompt, nil
	}
	return string(r[:max]) + "…", nil
}

// Refusal is returned (not as an error) when a distillation would not
// clear the minimum compression ratio — policy refusals are a typed
// result, not an exception path, so callers can report them distinctly
// from transient failures.
type Refusal struct {
	Cluster          domain.Cluster
	AchievedRatio    float64
	MinRequiredRatio float64
}

func (r Refusal) String() string {
	return fmt.Sprintf("cluster %s refused: achieved ratio %.3f below minimum %.3f",
		r.Cluster.Fingerprint, r.AchievedRatio, r.MinRequiredRatio)
}

// Distiller turns a cluster of memories into a single Distillation,
// refusing clusters that wouldn't actually save tokens.
type Distiller struct {
	llm                LLMClient
	MinCompressionRatio float64
}

func NewDistiller(llm LLMClient, minCompressionRatio float64) *Distiller {
	if minCompressionRatio <= 0 {
		minCompressionRatio = 2.0
	}
	return &Distiller{llm: llm, MinCompressionRatio: minCompressionRatio}
}

// Distill summarizes members via the LLM client and computes the
// resulting compression ratio. It returns a non-nil *Refusal instead of
// an error when the ratio gate fails — the caller decides whether that
// counts as a run failure.
func (d *Distiller) Distill(ctx context.Context, cluster domain.Cluster, members []domain.MemoryRecord) (*domain.Distillation, *Refusal, error) {
	var b strings.Builder
	for _, m := range members {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}

	summary, err := d.llm.Summarize(ctx, b.String())
	if err != nil {
		return nil, nil, err
	}
	if err := distillValidate.Struct(llmOutput{Summary: summary}); err != nil {
		return nil, nil, fmt.Errorf("llm output rejected: %w", err)
	}

	before := cluster.TotalTokens
	after := estimateTokens(summary)
	if after < 1 {
		after = 1
	}
	ratio := float64(before) / float64(after)

	if ratio < d.MinCompressionRatio {
		return nil, &Refusal{Cluster: cluster, AchievedRatio: ratio, MinRequiredRatio: d.MinCompressionRatio}, nil
	}

	return &domain.Distillation{
		Summary:          summary,
		CompressionRatio: ratio,
		TokenCountBefore: before,
		TokenCountAfter:  after,
	}, nil, nil
}

// estimateTokens is a cheap word-count proxy; no tokenizer dependency is
// in scope for this build.
func estimateTokens(s string) int {
	return len(strings.Fields(s))
}
