package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/shrimpzone/internal/ids"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// RequestIDHeader carries a per-request identifier for log correlation.
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the bearer token for authenticated calls.
// It returns an error when no usable session exists.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client calls the Shrimp Zone API.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	ids     ids.Generator
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Its Timeout bounds every call.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithIDGenerator overrides the request id generator (for testing).
func WithIDGenerator(g ids.Generator) Option {
	return func(c *Client) { c.ids = g }
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u.String(),
		http:    &http.Client{Timeout: 15 * time.Second},
		ids:     ids.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// call describes one round trip.
type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	authed bool
}

// do performs the call and decodes the response into out.
func (c *Client) do(ctx context.Context, req call, out enveloped) error {
	var token string
	if req.authed {
		if c.tokens == nil {
			return notAuthenticated(req.op, nil)
		}
		t, err := c.tokens.Token(ctx)
		if err != nil || t == "" {
			return notAuthenticated(req.op, err)
		}
		token = t
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", req.op, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", req.op, err)
	}
	requestID := c.ids.Generate()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		slog.Debug("api request failed",
			"op", req.op, "method", req.method, "path", req.path,
			"request_id", requestID, "error", err)
		return networkFailure(req.op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return networkFailure(req.op, fmt.Errorf("read response: %w", err))
	}

	slog.Debug("api request",
		"op", req.op, "method", req.method, "path", req.path,
		"status", resp.StatusCode, "request_id", requestID,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := messageOf(raw)
		if resp.StatusCode == http.StatusUnauthorized {
			ae := notAuthenticated(req.op, nil)
			ae.Status = resp.StatusCode
			if message != "" {
				ae.Message = message
			}
			return ae
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return serverRejected(req.op, resp.StatusCode, message)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		ae := serverRejected(req.op, resp.StatusCode, "malformed response")
		ae.Err = err
		return ae
	}
	if status := out.status(); !status.Success {
		message := status.Message
		if message == "" {
			message = "request was not successful"
		}
		return serverRejected(req.op, resp.StatusCode, message)
	}
	return nil
}

// messageOf extracts the "message" field of an error body, if any.
func messageOf(raw []byte) string {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	return env.Message
}

// IsContextError reports whether err stems from context cancellation or
// deadline expiry rather than a server or transport problem.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
