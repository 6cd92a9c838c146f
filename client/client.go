// Package client performs the bounded simulation request.
//
// One Run is one POST to the simulation service under a hard deadline. The
// outcome is either a validated RunResult or a *types.RunError of kind
// Timeout, MalformedResponse, or ServiceError. The client never logs and
// never retries; both are the caller's decision.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pithecene-io/crossflow/iox"
	"github.com/pithecene-io/crossflow/response"
	"github.com/pithecene-io/crossflow/types"
)

// DefaultTimeout is the hard upper bound on one simulation exchange.
const DefaultTimeout = 15 * time.Second

// DefaultURL is the endpoint of a locally running simulation service.
const DefaultURL = "http://localhost:5000/api/simulate"

// MaxBodyBytes caps the response body read into memory.
const MaxBodyBytes = 64 << 20

// UnreachableMessage is shown when no response was received at all.
const UnreachableMessage = "Simulation service unreachable."

// Config configures the client.
type Config struct {
	// URL is the simulation endpoint (default DefaultURL).
	URL string
	// Timeout bounds the whole exchange including the body read (default 15s).
	Timeout time.Duration
	// Headers are added to every request.
	Headers map[string]string
	// HTTPClient overrides the transport (default: a fresh http.Client).
	HTTPClient *http.Client
}

// Client talks to the simulation service.
type Client struct {
	config Config
	http   *http.Client
}

// Result is a validated run plus normalization statistics.
type Result struct {
	Run   *types.RunResult
	Stats response.Stats
}

// New creates a client. Zero config values fall back to defaults.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0, got %v", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{config: cfg, http: hc}, nil
}

// URL returns the configured endpoint.
func (c *Client) URL() string {
	return c.config.URL
}

// Timeout returns the configured deadline.
func (c *Client) Timeout() time.Duration {
	return c.config.Timeout
}

// Run performs one simulation request and returns the validated result.
// Cancelling ctx aborts the exchange; the returned error then wraps
// context.Canceled and is not a *types.RunError.
func (c *Client) Run(ctx context.Context, cfg *types.SimConfig) (*Result, error) {
	body, err := json.Marshal(BuildPayload(cfg))
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	status, raw, err := c.post(ctx, body)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}

	env, err := response.Parse(raw)
	if err != nil {
		return nil, err
	}
	if msg, failed := env.ServiceError(); failed {
		return nil, types.NewServiceError(msg, fmt.Errorf("service error field (status %d)", status))
	}
	if status < 200 || status >= 300 {
		return nil, types.NewServiceError("", &StatusError{Code: status})
	}

	run, stats, err := env.Normalize()
	if err != nil {
		return nil, err
	}
	return &Result{Run: run, Stats: stats}, nil
}

// post sends the request and reads the whole body under ctx.
func (c *Client) post(ctx context.Context, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	raw, err := iox.ReadAllLimit(resp.Body, MaxBodyBytes)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// classifyTransport maps a failed exchange to a run error kind.
func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, iox.ErrLimitExceeded) {
		return types.NewMalformedError(err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return types.NewTimeoutError(err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("simulation request canceled: %w", err)
	}
	return types.NewServiceError(UnreachableMessage, err)
}

// StatusError is the cause recorded for non-2xx responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Ping issues a GET health check and returns the service status string.
func (c *Client) Ping(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyTransport(ctx, fmt.Errorf("request failed: %w", err))
	}
	defer iox.DiscardClose(resp.Body)

	raw, err := iox.ReadAllLimit(resp.Body, MaxBodyBytes)
	if err != nil {
		return "", classifyTransport(ctx, fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", types.NewServiceError("", &StatusError{Code: resp.StatusCode})
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &health); err != nil {
		return "", types.NewMalformedError(err)
	}
	return health.Status, nil
}
