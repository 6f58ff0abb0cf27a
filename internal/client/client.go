// Package client provides typed HTTP adapters for the ragpilot backend.
//
// Two groups of operations are exposed:
//   - enrichment calls (retrieval query, file reading, web search, depth
//     classification, generation) in enrichment.go
//   - conversation lifecycle calls (create/list/history/rename/delete)
//     in conversations.go
//
// The backend owns retrieval ranking, search internals, persistence and
// the model itself; this package only speaks the HTTP+JSON contract.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ragpilot/ragpilot/internal/log"
)

const (
	// maxResponseSize bounds backend response bodies (prevent resource exhaustion).
	maxResponseSize = 10 << 20 // 10MB

	// defaultTimeout applies when Config.Timeout is zero.
	defaultTimeout = 2 * time.Minute
)

// Config contains all required parameters for the backend client.
type Config struct {
	// BaseURL is the backend root, e.g. "http://localhost:8000".
	BaseURL string

	// Timeout applies per request. Zero means defaultTimeout.
	Timeout time.Duration

	// Logger is required.
	Logger log.Logger

	// HTTPClient overrides the default client (tests). Optional.
	HTTPClient *http.Client

	// Limiter throttles outbound requests. Nil installs a default
	// limiter (10 req/s sustained, burst 30).
	Limiter *rate.Limiter

	// Retry controls transient-failure retries for idempotent GET calls.
	// Zero value uses defaults.
	Retry RetryConfig
}

// Client is the HTTP adapter for all backend operations.
// It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   RetryConfig
	logger  log.Logger
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, errors.New("client.New: logger is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client.New: invalid base URL %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	return &Client{
		baseURL: base,
		http:    httpClient,
		limiter: limiter,
		retry:   retry,
		logger:  cfg.Logger,
	}, nil
}

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// getJSON performs a GET with query parameters and decodes the JSON body
// into out. Transient failures are retried per the client's RetryConfig;
// GET endpoints on this backend are idempotent.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	body, err := c.withRetry(ctx, func() ([]byte, error) {
		return c.get(ctx, path, params)
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// get performs a single GET attempt.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// postJSON performs a POST with a JSON body and decodes the JSON response.
// POSTs are not retried: the backend's mutating endpoints are not idempotent.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// deleteJSON performs a DELETE and decodes the JSON response.
func (c *Client) deleteJSON(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// do executes the request and reads a size-bounded body.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncateForLog(string(body))}
	}
	return body, nil
}

// truncateForLog bounds error bodies embedded in error messages.
func truncateForLog(s string) string {
	const maxLen = 256
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
