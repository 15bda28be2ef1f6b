package rtl

import (
	"time"

	"github.com/cortexd/cortexd/internal/domain"
	"github.com/google/uuid"
)

// Relay is a source that turns a raw observation into a DetectionPayload
// and enqueues it. Each of the five relays below wraps one upstream
// signal; callers invoke the returned func whenever that signal fires.

// ToolMonitor builds a relay for tool-invocation failures.
func ToolMonitor(q *Queue) func(tool, message string, ctx map[string]any) bool {
	return func(tool, message string, ctx map[string]any) bool {
		return q.Enqueue(newPayload(domain.DetectionToolFailure, tool, message, ctx))
	}
}

// CorrectionScanner builds a relay for user-issued corrections. Rate
// limited since a frustrated user can issue many in quick succession.
func CorrectionScanner(q *Queue) func(message string, ctx map[string]any) bool {
	return func(message string, ctx map[string]any) bool {
		return q.EnqueueLimited(newPayload(domain.DetectionUserCorrection, "user", message, ctx))
	}
}

// HookViolationRelay builds a relay for external pre-action hook
// violations. cortexd only consumes these events — it never implements
// the hook itself.
func HookViolationRelay(q *Queue) func(hook, message string, ctx map[string]any) bool {
	return func(hook, message string, ctx map[string]any) bool {
		return q.Enqueue(newPayload(domain.DetectionHookViolation, hook, message, ctx))
	}
}

// TrustEventRelay builds a relay for trust-boundary violations.
func TrustEventRelay(q *Queue) func(source, message string, ctx map[string]any) bool {
	return func(source, message string, ctx map[string]any) bool {
		return q.Enqueue(newPayload(domain.DetectionTrustViolation, source, message, ctx))
	}
}

// PipelineFailRelay builds a relay for CI/pipeline stage failures.
func PipelineFailRelay(q *Queue) func(stage, message string, ctx map[string]any) bool {
	return func(stage, message string, ctx map[string]any) bool {
		return q.Enqueue(newPayload(domain.DetectionPipelineFailure, stage, message, ctx))
	}
}

func newPayload(t domain.DetectionType, source, message string, ctx map[string]any) domain.DetectionPayload {
	return domain.DetectionPayload{
		ID:         uuid.NewString(),
		Type:       t,
		Source:     source,
		Message:    message,
		Context:    ctx,
		OccurredAt: time.Now(),
	}
}
