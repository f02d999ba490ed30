package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/oraclelint/internal/notifier"
)

// Default request timeouts.
const (
	DefaultProbeTimeout = 2 * time.Second
	DefaultLintTimeout  = 30 * time.Second
)

// maxExcerpt bounds how much of a bad response body ends up in an error.
const maxExcerpt = 120

// Client performs the lint server's HTTP protocol.
type Client struct {
	baseURL      string
	http         *http.Client
	probeTimeout time.Duration
	lintTimeout  time.Duration
	logger       *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeouts sets the timeout for probe-style calls (check-alive,
// version, shutdown) and for lint calls. Zero keeps the default.
func WithTimeouts(probe, lint time.Duration) ClientOption {
	return func(c *Client) {
		if probe > 0 {
			c.probeTimeout = probe
		}
		if lint > 0 {
			c.lintTimeout = lint
		}
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// BaseURL returns the address of a lint server listening on port.
func BaseURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      baseURL,
		http:         &http.Client{},
		probeTimeout: DefaultProbeTimeout,
		lintTimeout:  DefaultLintTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// CheckAlive succeeds if the server answers at all. Any transport error,
// including a refused connection, means the server is not running.
func (c *Client) CheckAlive(ctx context.Context) error {
	_, _, err := c.call(ctx, http.MethodGet, PathCheckAlive, nil, c.probeTimeout, nil)
	return err
}

// Version returns the protocol version reported by the server.
func (c *Client) Version(ctx context.Context) (string, error) {
	body, _, err := c.call(ctx, http.MethodGet, PathVersion, nil, c.probeTimeout, nil)
	if err != nil {
		return "", err
	}

	var version string
	if err := json.Unmarshal(bytes.TrimSpace(body), &version); err != nil {
		return "", &notifier.Error{Kind: notifier.KindMalformedResponse, Op: "version", Err: fmt.Errorf("%w: body %s", err, excerpt(body))}
	}
	return version, nil
}

// LintFile sends a lint request and decodes the diagnostics.
// A body that is not a JSON array of diagnostics yields an error of kind
// KindMalformedResponse; transport errors are returned as they are.
func (c *Client) LintFile(ctx context.Context, req LintRequest) ([]Diagnostic, error) {
	if req.Filters == nil {
		req.Filters = []json.RawMessage{}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode lint request: %w", err)
	}

	requestID := uuid.NewString()
	start := time.Now()
	body, status, err := c.call(ctx, http.MethodPost, PathLintFile, payload, c.lintTimeout, http.Header{"X-Request-Id": {requestID}})
	if err != nil {
		return nil, fmt.Errorf("lint %s: %w", req.Path, err)
	}

	diags, err := decodeDiagnostics(body)
	if err != nil {
		return nil, &notifier.Error{Kind: notifier.KindMalformedResponse, Op: "lint-file", Path: req.Path, Err: err}
	}

	c.logger.Debug("lint response",
		"request_id", requestID,
		"path", req.Path,
		"status", status,
		"diagnostics", len(diags),
		"duration", time.Since(start))
	return diags, nil
}

// Shutdown asks the server to stop. The server may drop the connection
// before answering, so callers should treat errors as informational.
func (c *Client) Shutdown(ctx context.Context) error {
	_, _, err := c.call(ctx, http.MethodGet, PathShutdown, nil, c.probeTimeout, nil)
	return err
}

func (c *Client) call(ctx context.Context, method, path string, body []byte, timeout time.Duration, header http.Header) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read %s response: %w", path, err)
	}
	return data, resp.StatusCode, nil
}

func decodeDiagnostics(body []byte) ([]Diagnostic, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return nil, fmt.Errorf("expected a JSON array, got %s", excerpt(body))
	}

	diags := []Diagnostic{}
	if err := json.Unmarshal(trimmed, &diags); err != nil {
		return nil, fmt.Errorf("%w: body %s", err, excerpt(body))
	}
	return diags, nil
}

func excerpt(body []byte) string {
	s := string(bytes.TrimSpace(body))
	if len(s) > maxExcerpt {
		s = s[:maxExcerpt] + "..."
	}
	return fmt.Sprintf("%q", s)
}
