package client

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kjstillabower/matchboard/internal/circuitbreaker"
	"github.com/kjstillabower/matchboard/internal/extract"
)

// TestCategorizeError verifies that CategorizeError maps errors to the correct ErrorCategory
// for metrics labeling, including sentinel errors, wrapped errors, and message-based heuristics.
func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"missing credential", ErrMissingCredential, ErrorCategoryMissingCredential},
		{"invalid API key", fmt.Errorf("auth: %w", ErrInvalidAPIKey), ErrorCategoryInvalidAPIKey},
		{"rate limited", fmt.Errorf("%w: HTTP 429", ErrRateLimited), ErrorCategoryRateLimited},
		{"resource exhausted text", errors.New("googleapi: RESOURCE_EXHAUSTED quota"), ErrorCategoryRateLimited},
		{"circuit open", fmt.Errorf("%w: %w", ErrUpstreamFailure, circuitbreaker.ErrOpen), ErrorCategoryCircuitOpen},
		{"no json", fmt.Errorf("parse response: %w", extract.ErrNoJSON), ErrorCategoryParsing},
		{"invalid json", extract.ErrInvalidJSON, ErrorCategoryParsing},
		{"empty response", ErrEmptyResponse, ErrorCategoryParsing},
		{"timeout context", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"wrapped timeout", fmt.Errorf("request timeout: %w", context.DeadlineExceeded), ErrorCategoryTimeout},
		{"upstream failure", fmt.Errorf("%w: HTTP 503", ErrUpstreamFailure), ErrorCategoryUpstream},
		{"network in message", errors.New("dial tcp: connection refused"), ErrorCategoryNetwork},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeError(tt.err)
			if got != tt.want {
				t.Errorf("CategorizeError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrRateLimited, true},
		{errors.New("HTTP 429 Too Many Requests"), true},
		{errors.New("status RESOURCE_EXHAUSTED"), true},
		{ErrUpstreamFailure, false},
	}
	for _, tt := range tests {
		if got := IsRateLimit(tt.err); got != tt.want {
			t.Errorf("IsRateLimit(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
