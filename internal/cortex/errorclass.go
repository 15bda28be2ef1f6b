package cortex

import (
	"context"
	"errors"
	"strings"

	"github.com/cortexd/cortexd/internal/domain"
)

// ClassifyError is a pure pattern-matcher turning an attempt's error
// into one of the router's ErrorClass values. nil maps to
// ErrClassNone. Detection is string-keyword based, same as the rest of
// this build's classifiers (rtl.Classifier, anomaly.Classifier) —
// there is no structured error taxonomy coming from model backends to
// match against instead.
func ClassifyError(err error) domain.ErrorClass {
	if err == nil {
		return domain.ErrClassNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrClassTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return domain.ErrClassTimeout
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "capacity") || strings.Contains(msg, "overloaded"):
		return domain.ErrClassCapacity
	case strings.Contains(msg, "5") && (strings.Contains(msg, "server error") || strings.Contains(msg, "internal error")):
		return domain.ErrClassProvider5xx
	case strings.Contains(msg, "policy") || strings.Contains(msg, "refused") || strings.Contains(msg, "not permitted"):
		return domain.ErrClassPolicyOverride
	default:
		return domain.ErrClassProvider5xx
	}
}
