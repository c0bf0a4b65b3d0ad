// Package transport is the thin shared HTTP client spec.md §4.4 requires:
// a 2s default timeout, connection reuse, used for agent→engine alerts and
// for the router's and the engine's fetches of agent metrics. The router's
// replica health probe and its reverse proxy use their own net/http clients,
// and the orchestrator is reached through client-go. Retry policy is exactly the per-call contract
// each caller documents; this package adds no retries of its own.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/swarmguard/swarmguard/internal/apierr"
)

// DefaultTimeout is the default per-call timeout (spec.md §4.4).
const DefaultTimeout = 2 * time.Second

// MaxResponseBodySize caps how much of a response body is read, guarding
// against a misbehaving collaborator returning an unbounded stream.
const MaxResponseBodySize = 4 * 1024 * 1024

// Client is the shared HTTP client. Zero value is not usable; use New.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *CircuitBreaker
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit attaches an outbound rate limiter, used on the agent's
// alert-sending client and the router's metrics-fetcher client (the
// engine's metrics-refresh client also flows through this package but is
// built without a limiter; the orchestrator collaborator is a client-go
// clientset, not an HTTP
// client, so it never passes through transport.Client).
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst) }
}

// WithCircuitBreaker attaches a circuit breaker around Do.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// WithLogger attaches a logger used for request/response tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a Client with connection reuse and DefaultTimeout.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes req, optionally waiting on the rate limiter and routing
// through the circuit breaker when either is configured.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	var resp *http.Response
	err := c.breaker.Call(func() error {
		var doErr error
		resp, doErr = c.httpClient.Do(req)
		if doErr != nil {
			return doErr
		}
		if resp.StatusCode >= 500 {
			return apierr.NewAPIError(resp.StatusCode, "server error", req.URL.Path)
		}
		return nil
	})
	return resp, err
}

// PostJSON POSTs body as JSON to url and decodes the response into out
// (if non-nil). Returns *apierr.APIError for any non-2xx response.
func (c *Client) PostJSON(ctx context.Context, url string, body, out interface{}) error {
	return c.doJSON(ctx, http.MethodPost, url, body, out)
}

// GetJSON GETs url and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, url, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBodySize))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apierr.NewAPIError(resp.StatusCode, "unexpected status", string(payload))
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
