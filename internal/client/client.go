// Package client provides the HTTP client used by the load generator.
// It wraps net/http with base-URL joining, JSON body handling, and
// per-request bearer authentication.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/portal/loadgen/internal/config"
)

// Errors returned by the client package.
var (
	// ErrInvalidBaseURL is returned when the configured base URL is invalid.
	ErrInvalidBaseURL = errors.New("client: invalid base URL")
)

// Client is the HTTP client for the load generator.
// It is safe for concurrent use by multiple virtual users.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
}

// Request describes a single HTTP request.
type Request struct {
	// Method is the HTTP method.
	Method string

	// Path is the request path relative to the base URL.
	Path string

	// Body, when non-nil, is marshalled to JSON and sent as the request body.
	Body any

	// BearerToken, when non-empty, is sent as an Authorization header.
	// Unauthenticated requests leave it empty and send no Authorization
	// header at all.
	BearerToken string

	// Headers are additional request headers.
	Headers map[string]string
}

// New creates a new HTTP client from the target configuration.
func New(cfg config.TargetConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidBaseURL)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		headers: headers,
	}, nil
}

// Do executes a request and returns the parsed response.
// A non-2xx status is not an error; only transport-level failures are.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("client: marshalling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("client: building request: %w", err)
	}

	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.BearerToken)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", req.Method, req.Path, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: reading response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Header:     httpResp.Header,
		Latency:    latency,
	}, nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path, token string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, BearerToken: token})
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, token string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, BearerToken: token})
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections held by the underlying transport.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
