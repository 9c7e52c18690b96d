package domain

import "errors"

var (
	ErrEmptyQuery           = errors.New("empty query")
	ErrOrchestrationTimeout = errors.New("orchestration timed out")
	ErrAnalysisFailed       = errors.New("query analysis failed")
	ErrAllDomainsFailed     = errors.New("all domains failed")

	ErrNotFound           = errors.New("not found")
	ErrRateLimited        = errors.New("rate limited")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrSemanticDisabled   = errors.New("semantic search unavailable")

	ErrModelInvoke      = errors.New("model invoke failed")
	ErrBudgetExhausted  = errors.New("search budget exhausted")
	ErrUnknownTool      = errors.New("unknown tool")
	ErrUnknownDomain    = errors.New("unknown domain")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Retryable reports whether a backend error is worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrBackendUnavailable)
}
