package client

import (
	"context"
	"errors"
	"strings"

	"github.com/kjstillabower/matchboard/internal/circuitbreaker"
	"github.com/kjstillabower/matchboard/internal/extract"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as metric labels (genaiApiErrorsTotal).
const (
	ErrorCategoryTimeout           ErrorCategory = "timeout"
	ErrorCategoryNetwork           ErrorCategory = "network"
	ErrorCategoryMissingCredential ErrorCategory = "missing_credential"
	ErrorCategoryInvalidAPIKey     ErrorCategory = "invalid_api_key"
	ErrorCategoryRateLimited       ErrorCategory = "rate_limited"
	ErrorCategoryCircuitOpen       ErrorCategory = "circuit_open"
	ErrorCategoryUpstream          ErrorCategory = "upstream"
	ErrorCategoryParsing           ErrorCategory = "parsing"
	ErrorCategoryUnknown           ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory. Sentinels are
// checked before message heuristics, so a wrapped 429 whose text mentions a
// timeout is still rate_limited.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrMissingCredential):
		return ErrorCategoryMissingCredential
	case errors.Is(err, ErrInvalidAPIKey):
		return ErrorCategoryInvalidAPIKey
	case IsRateLimit(err):
		return ErrorCategoryRateLimited
	case errors.Is(err, circuitbreaker.ErrOpen):
		return ErrorCategoryCircuitOpen
	case errors.Is(err, extract.ErrNoJSON), errors.Is(err, extract.ErrInvalidJSON), errors.Is(err, ErrEmptyResponse):
		return ErrorCategoryParsing
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorCategoryTimeout
	case errors.Is(err, ErrUpstreamFailure):
		return ErrorCategoryUpstream
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "timeout"):
		return ErrorCategoryTimeout
	case strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") || strings.Contains(errStr, "no such host"):
		return ErrorCategoryNetwork
	case strings.Contains(errStr, "parse") || strings.Contains(errStr, "unmarshal"):
		return ErrorCategoryParsing
	}
	return ErrorCategoryUnknown
}

// IsRateLimit reports whether err signals provider quota exhaustion, either
// through the sentinel or the raw HTTP 429 / RESOURCE_EXHAUSTED text.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "RESOURCE_EXHAUSTED") || strings.Contains(errStr, "HTTP 429") || strings.Contains(errStr, "Too Many Requests")
}
