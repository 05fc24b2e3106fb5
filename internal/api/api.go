package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"trading-bot-dashboard/internal/logger"
	"trading-bot-dashboard/internal/types"
)

// Client talks to a running dashboard server
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	useLogging bool
}

// ClientOption configures the API client
type ClientOption func(*Client)

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

func WithLogging(enabled bool) ClientOption {
	return func(c *Client) {
		c.useLogging = enabled
	}
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: "http://localhost:8080",
		headers: map[string]string{"Accept": "application/json"},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Request represents one call against the dashboard API
type Request struct {
	Method string
	Path   string
	Body   any
	ctx    context.Context
}

func NewRequest(ctx context.Context, method, path string, body any) *Request {
	return &Request{Method: method, Path: path, Body: body, ctx: ctx}
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
}

// ParseJSON parses the response body as JSON into v
func (r *Response) ParseJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

// StatusError is returned for 4xx/5xx answers
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Do executes the request
func (c *Client) Do(req *Request) (*Response, error) {
	url := c.baseURL + req.Path

	var bodyReader io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(req.ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	c.logDebug(req.ctx, "HTTP Request", "method", req.Method, "url", url)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logDebug(req.ctx, "HTTP Response",
		"method", req.Method,
		"url", url,
		"status", httpResp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if httpResp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := string(body)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, &StatusError{StatusCode: httpResp.StatusCode, Message: msg}
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: body}, nil
}

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     2 * time.Second,
	}
}

// DoWithRetry retries transport errors and 5xx answers with exponential
// backoff. 4xx answers are returned immediately.
func (c *Client) DoWithRetry(req *Request, config *RetryConfig) (*Response, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	wait := config.InitialWait

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		resp, err := c.Do(req)
		if err == nil {
			return resp, nil
		}
		if se, ok := err.(*StatusError); ok && se.StatusCode < 500 {
			return nil, err
		}

		lastErr = err
		c.logWarn(req.ctx, "Request failed, retrying", "attempt", attempt, "error", err, "wait", wait)

		if attempt < config.MaxAttempts {
			select {
			case <-time.After(wait):
			case <-req.ctx.Done():
				return nil, req.ctx.Err()
			}
			wait *= 2
			if wait > config.MaxWait {
				wait = config.MaxWait
			}
		}
	}

	return nil, fmt.Errorf("all %d retry attempts failed: %w", config.MaxAttempts, lastErr)
}

// State fetches the current dashboard snapshot
func (c *Client) State(ctx context.Context) (types.State, error) {
	var st types.State
	resp, err := c.DoWithRetry(NewRequest(ctx, http.MethodGet, "/api/state", nil), nil)
	if err != nil {
		return st, err
	}
	return st, resp.ParseJSON(&st)
}

// Post sends a mutation and returns the resulting snapshot
func (c *Client) Post(ctx context.Context, path string, body any) (types.State, error) {
	var st types.State
	resp, err := c.Do(NewRequest(ctx, http.MethodPost, path, body))
	if err != nil {
		return st, err
	}
	return st, resp.ParseJSON(&st)
}

func (c *Client) logDebug(ctx context.Context, msg string, args ...any) {
	if c.useLogging {
		logger.Debug(ctx, msg, args...)
	}
}

func (c *Client) logWarn(ctx context.Context, msg string, args ...any) {
	if c.useLogging {
		logger.Warn(ctx, msg, args...)
	}
}
