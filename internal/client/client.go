package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/kjstillabower/matchboard/internal/circuitbreaker"
	"github.com/kjstillabower/matchboard/internal/models"
	"github.com/kjstillabower/matchboard/internal/observability"
	"github.com/kjstillabower/matchboard/internal/validation"
)

// CompletionClient asks a generative provider for search-grounded text.
type CompletionClient interface {
	GenerateGrounded(ctx context.Context, prompt string) (Completion, error)
	ValidateAPIKey(ctx context.Context) error
}

// Completion is the provider's answer: free-form text plus the web pages it cited.
type Completion struct {
	Text    string
	Sources []models.GroundingSource
}

var (
	ErrMissingCredential = errors.New("API credential missing")
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrEmptyResponse     = errors.New("empty response")
)

const (
	DefaultAPIURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel  = "gemini-2.5-flash"

	maxResponseBytes = 4 << 20
	minAPIKeyLength  = 20
)

type GeminiClient struct {
	apiKey         string
	apiURL         string
	model          string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
}

func NewGeminiClient(apiKey, apiURL, model string, timeout time.Duration) (*GeminiClient, error) {
	return NewGeminiClientWithRetry(apiKey, apiURL, model, timeout, 3, 500*time.Millisecond, 4*time.Second)
}

// NewGeminiClientWithRetry validates the credential and builds a client.
// Placeholder or empty keys return ErrMissingCredential so callers can run
// without live data instead of failing to start.
func NewGeminiClientWithRetry(apiKey, apiURL, model string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if validation.PlaceholderCredential(apiKey) {
		return nil, fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingCredential)
	}
	if len(apiKey) < minAPIKeyLength {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if model == "" {
		model = DefaultModel
	}
	if retryAttempts <= 0 {
		retryAttempts = 1
	}

	return &GeminiClient{
		apiKey:         apiKey,
		apiURL:         strings.TrimRight(apiURL, "/"),
		model:          model,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker wraps every GenerateGrounded call in cb.
func (c *GeminiClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	Tools            []tool            `json:"tools"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type tool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content           content `json:"content"`
		FinishReason      string  `json:"finishReason"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateGrounded sends prompt with Google Search grounding enabled.
// Rate limits and credential errors are returned immediately; upstream 5xx,
// timeouts and transport errors are retried with exponential backoff.
func (c *GeminiClient) GenerateGrounded(ctx context.Context, prompt string) (Completion, error) {
	if c.breaker == nil {
		return c.generateWithRetry(ctx, prompt)
	}
	var out Completion
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		out, err = c.generateWithRetry(ctx, prompt)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return Completion{}, fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
	}
	return out, err
}

func (c *GeminiClient) generateWithRetry(ctx context.Context, prompt string) (Completion, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.GenAIRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return Completion{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.callAPI(ctx, prompt)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil || !isRetryable(err) {
			return Completion{}, err
		}
	}

	return Completion{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *GeminiClient) callAPI(ctx context.Context, prompt string) (Completion, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildGenerateRequest(reqCtx, prompt)
	if err != nil {
		observability.GenAICallsTotal.WithLabelValues("error").Inc()
		return Completion{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.GenAICallsTotal.WithLabelValues("error").Inc()
		observability.GenAIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())

		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return Completion{}, fmt.Errorf("request timeout: %w", err)
		}
		return Completion{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	status := statusLabel(resp.StatusCode)
	observability.GenAICallsTotal.WithLabelValues(status).Inc()
	observability.GenAIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp.StatusCode, body); err != nil {
		return Completion{}, err
	}
	if readErr != nil {
		return Completion{}, fmt.Errorf("read response body: %w", readErr)
	}

	var apiResp generateResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return Completion{}, fmt.Errorf("parse response: %w", err)
	}
	return mapResponse(apiResp)
}

func (c *GeminiClient) buildGenerateRequest(ctx context.Context, prompt string) (*http.Request, error) {
	payload, err := json.Marshal(generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		Tools:            []tool{{GoogleSearch: &struct{}{}}},
		GenerationConfig: &generationConfig{Temperature: 0.2},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL()+":generateContent", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(ctx, req)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *GeminiClient) modelURL() string {
	return c.apiURL + "/models/" + c.model
}

func (c *GeminiClient) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
}

// handleErrorResponse maps non-2xx responses to sentinel errors. The provider
// reports quota exhaustion as RESOURCE_EXHAUSTED, usually with HTTP 429.
func handleErrorResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr apiErrorBody
	_ = json.Unmarshal(body, &apiErr)
	detail := strings.TrimSpace(apiErr.Error.Status + " " + apiErr.Error.Message)
	if detail == "" {
		detail = http.StatusText(statusCode)
	}

	switch {
	case statusCode == http.StatusTooManyRequests || apiErr.Error.Status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%w: HTTP %d: %s", ErrRateLimited, statusCode, detail)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden,
		apiErr.Error.Status == "UNAUTHENTICATED" || apiErr.Error.Status == "PERMISSION_DENIED",
		strings.Contains(apiErr.Error.Message, "API key not valid"):
		return fmt.Errorf("%w: HTTP %d: %s", ErrInvalidAPIKey, statusCode, detail)
	}
	return fmt.Errorf("%w: HTTP %d: %s", ErrUpstreamFailure, statusCode, detail)
}

func mapResponse(apiResp generateResponse) (Completion, error) {
	if len(apiResp.Candidates) == 0 {
		if apiResp.PromptFeedback != nil && apiResp.PromptFeedback.BlockReason != "" {
			return Completion{}, fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyResponse, apiResp.PromptFeedback.BlockReason)
		}
		return Completion{}, fmt.Errorf("%w: no candidates", ErrEmptyResponse)
	}

	cand := apiResp.Candidates[0]
	var text strings.Builder
	for _, p := range cand.Content.Parts {
		text.WriteString(p.Text)
	}

	sources := []models.GroundingSource{}
	if cand.GroundingMetadata != nil {
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil || !validation.SourceURI(chunk.Web.URI) {
				continue
			}
			title := strings.TrimSpace(chunk.Web.Title)
			if title == "" {
				title = chunk.Web.URI
			}
			sources = append(sources, models.GroundingSource{Title: title, URI: chunk.Web.URI})
		}
	}
	return Completion{Text: text.String(), Sources: sources}, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrInvalidAPIKey) {
		return false
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "http request failed")
}

// CountsAgainstCircuit reports whether err indicates the provider itself is
// unhealthy. Quota and credential errors do not open the circuit.
func CountsAgainstCircuit(err error) bool {
	if err == nil || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrInvalidAPIKey) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func (c *GeminiClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// ValidateAPIKey fetches the configured model's metadata, which costs no
// generation quota.
func (c *GeminiClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL(), nil)
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}
	c.setHeaders(ctx, req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if err := handleErrorResponse(resp.StatusCode, body); errors.Is(err, ErrInvalidAPIKey) || errors.Is(err, ErrRateLimited) {
		return err
	}
	return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
}

// UnavailableClient stands in when no usable credential is configured. Every
// call fails with the construction error and no network traffic.
type UnavailableClient struct {
	err error
}

// NewUnavailableClient returns a client that always fails with err.
func NewUnavailableClient(err error) *UnavailableClient {
	if err == nil {
		err = ErrMissingCredential
	}
	return &UnavailableClient{err: err}
}

func (u *UnavailableClient) GenerateGrounded(ctx context.Context, prompt string) (Completion, error) {
	return Completion{}, u.err
}

func (u *UnavailableClient) ValidateAPIKey(ctx context.Context) error {
	return u.err
}
